package generate

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// Anthropic generates replies with the Anthropic messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic generator.
func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{client: anthropic.NewClient(option.WithAPIKey(apiKey)), model: model}, nil
}

// Name returns the provider name.
func (g *Anthropic) Name() string {
	return ProviderAnthropic
}

// Generate sends the history as a messages request. The system prompt is sent
// as a leading text block of the first user message.
func (g *Anthropic) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	systemPending := req.System != ""
	for _, msg := range req.Messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
		if systemPending && msg.Role == RoleUser {
			blocks = append(blocks, textBlock(req.System))
			systemPending = false
		}
		blocks = append(blocks, textBlock(msg.Content))
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F(blocks),
		})
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens(req.MaxTokens))),
		Messages:  anthropic.F(messages),
	})
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}
	if content == "" {
		return nil, ErrEmptyReply
	}
	return &Response{
		Content:   content,
		Model:     resp.Model,
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
	}, nil
}

func textBlock(text string) anthropic.TextBlockParam {
	return anthropic.TextBlockParam{
		Type: anthropic.F(anthropic.TextBlockParamTypeText),
		Text: anthropic.F(text),
	}
}
