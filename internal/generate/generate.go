// Package generate wraps the language model providers behind one opaque
// capability: turn a prompt and chat history into a reply.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderStatic    = "static"
)

const defaultMaxTokens = 1024

// ErrEmptyReply is returned when a provider answers with no text.
var ErrEmptyReply = errors.New("empty reply from model")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a generation request. System carries instructions and the
// candidate companies; Messages is the history ending with the user message.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response is the generated reply.
type Response struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// Generator produces assistant replies.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// New builds the generator for provider. The static provider needs no key.
func New(provider, apiKey, model string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOpenAI:
		return NewOpenAI(apiKey, model)
	case ProviderAnthropic:
		return NewAnthropic(apiKey, model)
	case ProviderStatic, "":
		return &Static{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func maxTokens(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}

// lastUserMessage returns the content of the final user message.
func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
