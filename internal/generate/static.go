package generate

import (
	"context"
	"strings"
)

// Static answers without calling a model. It is used offline and in tests.
type Static struct {
	// Reply is returned verbatim when set.
	Reply string
	// Err, when set, fails every call.
	Err error
}

// Name returns the provider name.
func (g *Static) Name() string {
	return ProviderStatic
}

// Generate returns Reply, or a summary built from the system prompt's
// candidate lines and the last user message.
func (g *Static) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Err != nil {
		return nil, g.Err
	}
	if g.Reply != "" {
		return &Response{Content: g.Reply, Model: ProviderStatic}, nil
	}

	var b strings.Builder
	b.WriteString("Запрос: ")
	b.WriteString(lastUserMessage(req.Messages))
	for _, line := range strings.Split(req.System, "\n") {
		if strings.HasPrefix(line, "- ") {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return &Response{Content: b.String(), Model: ProviderStatic}, nil
}
