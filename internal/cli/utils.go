// Package cli formats command output for the biznesinfo binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/biznesinfo/internal/assistant"
	"github.com/hyperjump/biznesinfo/internal/models"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// FormatFor returns OutputJSON when asJSON is set.
func FormatFor(asJSON bool) OutputFormat {
	if asJSON {
		return OutputJSON
	}
	return OutputText
}

// WriteSearchResults writes a search result page to w.
func WriteSearchResults(w io.Writer, res *models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d companies (backend: %s", res.Total, res.Backend)
	if res.City != "" {
		fmt.Fprintf(w, ", city: %s", res.City)
	}
	fmt.Fprintf(w, ")\n\n")
	for i, c := range res.Companies {
		writeCompany(w, i+1, c)
	}
	return nil
}

func writeCompany(w io.Writer, rank int, c *models.Company) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s", rank, c.Name)
	if c.City != "" {
		fmt.Fprintf(w, " (%s)", c.City)
	}
	fmt.Fprintf(w, "\nID: %s\n", c.ID)
	if c.Address != "" {
		fmt.Fprintf(w, "Address: %s\n", c.Address)
	}
	if len(c.Phones) > 0 {
		fmt.Fprintf(w, "Phones: %s\n", strings.Join(c.Phones, ", "))
	}
	if len(c.Websites) > 0 {
		fmt.Fprintf(w, "Web: %s\n", strings.Join(c.Websites, ", "))
	}
	if names := c.CategoryNames(); len(names) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(names, ", "))
	}
	if c.Description != "" {
		fmt.Fprintf(w, "\n%s\n", Truncate(c.Description, 200))
	}
	fmt.Fprintln(w)
}

// WriteReply writes an assistant reply to w.
func WriteReply(w io.Writer, reply *assistant.Reply, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reply)
	}
	fmt.Fprintf(w, "%s\n\n", reply.Message)
	fmt.Fprintf(w, "session: %s  turn: %d  request: %s\n", reply.SessionID, reply.TurnIndex, reply.RequestID)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate shortens s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
