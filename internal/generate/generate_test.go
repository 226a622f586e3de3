package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		key      string
		wantName string
		wantErr  bool
	}{
		{"static", "", ProviderStatic, false},
		{"", "", ProviderStatic, false},
		{"OpenAI", "sk-test", ProviderOpenAI, false},
		{"anthropic", "sk-ant-test", ProviderAnthropic, false},
		{"openai", "", "", true},
		{"anthropic", "", "", true},
		{"gemini", "k", "", true},
	}
	for _, tt := range tests {
		g, err := New(tt.provider, tt.key, "")
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q): err = %v, wantErr %v", tt.provider, err, tt.wantErr)
			continue
		}
		if err == nil && g.Name() != tt.wantName {
			t.Errorf("New(%q).Name() = %q, want %q", tt.provider, g.Name(), tt.wantName)
		}
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	req := &Request{
		System: "Кандидаты:\n- ТрубСнаб (Минск)\n- Бетон Плюс (Гомель)",
		Messages: []Message{
			{Role: RoleUser, Content: "старый вопрос"},
			{Role: RoleAssistant, Content: "ответ"},
			{Role: RoleUser, Content: "нужны трубы"},
		},
	}

	resp, err := (&Static{}).Generate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Content, "нужны трубы") || !strings.Contains(resp.Content, "- ТрубСнаб (Минск)") {
		t.Errorf("Content = %q", resp.Content)
	}
	if strings.Contains(resp.Content, "старый вопрос") {
		t.Error("only the last user message should be echoed")
	}

	resp, err = (&Static{Reply: "fixed"}).Generate(ctx, req)
	if err != nil || resp.Content != "fixed" {
		t.Errorf("fixed reply = %v, %v", resp, err)
	}

	boom := errors.New("boom")
	if _, err := (&Static{Err: boom}).Generate(ctx, req); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := (&Static{}).Generate(cancelled, req); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}
