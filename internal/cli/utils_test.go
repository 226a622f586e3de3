package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/biznesinfo/internal/assistant"
	"github.com/hyperjump/biznesinfo/internal/models"
)

func sampleResult() *models.SearchResult {
	return &models.SearchResult{
		Companies: []*models.Company{
			{
				ID:          "trub-1",
				Name:        "ТрубСнаб",
				City:        "Минск",
				Phones:      []string{"+375291234567"},
				Websites:    []string{"https://trub.by"},
				Categories:  []models.Category{{Slug: "truby", Name: "Трубы"}},
				Description: "Поставка стальных труб",
			},
		},
		Total:   1,
		Backend: models.BackendPrimary,
		City:    "Минск",
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResult(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 1 || len(decoded.Companies) != 1 || decoded.Companies[0].ID != "trub-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResult(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 companies", "city: Минск", "1. ТрубСнаб (Минск)", "Phones: +375291234567", "Categories: Трубы", "Поставка стальных труб"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_textEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, models.EmptyResult(), OutputFormat("xml")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Found 0 companies") {
		t.Errorf("unknown format should fall back to text, got %q", buf.String())
	}
}

func TestWriteReply(t *testing.T) {
	reply := &assistant.Reply{SessionID: "s1", TurnIndex: 2, RequestID: "r1", Message: "Вот компании"}
	var buf bytes.Buffer
	if err := WriteReply(&buf, reply, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Вот компании") || !strings.Contains(buf.String(), "session: s1  turn: 2") {
		t.Errorf("text reply = %q", buf.String())
	}

	buf.Reset()
	if err := WriteReply(&buf, reply, FormatFor(true)); err != nil {
		t.Fatal(err)
	}
	var decoded assistant.Reply
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded.SessionID != "s1" {
		t.Errorf("json reply = %q (%v)", buf.String(), err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"cyrillic", "Поставка труб", 8, "Поставка..."},
		{"maxLen zero", "ab", 0, "ab"},
		{"maxLen negative", "ab", -1, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}
