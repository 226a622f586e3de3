// Package models defines core data structures for companies, queries, conversations, and search results.
package models

// Company is a catalog entry as returned by search backends.
// ID is the raw catalog identifier and may be a legacy, non-canonical form.
type Company struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	City        string     `json:"city,omitempty"`
	Region      string     `json:"region,omitempty"`
	Address     string     `json:"address,omitempty"`
	Phones      []string   `json:"phones,omitempty"`
	Emails      []string   `json:"emails,omitempty"`
	Websites    []string   `json:"websites,omitempty"`
	UNP         string     `json:"unp,omitempty"`
	LogoURL     string     `json:"logo_url,omitempty"`
	Categories  []Category `json:"categories,omitempty"`
	Rubrics     []Category `json:"rubrics,omitempty"`
	Source      string     `json:"source,omitempty"`
	SourceID    string     `json:"source_id,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
}

// Category is a catalog rubric or category reference.
type Category struct {
	Slug string `json:"slug,omitempty"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// CategoryNames returns the names of categories followed by rubrics.
func (c *Company) CategoryNames() []string {
	out := make([]string, 0, len(c.Categories)+len(c.Rubrics))
	for _, cat := range c.Categories {
		if cat.Name != "" {
			out = append(out, cat.Name)
		}
	}
	for _, rub := range c.Rubrics {
		if rub.Name != "" {
			out = append(out, rub.Name)
		}
	}
	return out
}
