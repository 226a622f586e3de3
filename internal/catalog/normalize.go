package catalog

import (
	"regexp"
	"strings"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/pkg/utils"
)

const (
	// SourceName is the canonical source for first-party catalog records.
	SourceName = "biznesinfo"

	companyPathPrefix = "/company"
	catalogPathPrefix = "/catalog"
	minPhoneDigits    = 9
)

var legacyTokenRe = regexp.MustCompile(`(?i)ibiz|belarusinfo`)

func hasLegacyToken(s string) bool {
	return legacyTokenRe.MatchString(s)
}

func replaceLegacyTokens(s string) string {
	return legacyTokenRe.ReplaceAllString(s, SourceName)
}

// Normalize rewrites a company record in place: collapses whitespace, rewrites
// legacy source tokens, cleans contact fields and fills derived URLs.
func Normalize(c *models.Company) {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = utils.NormSpace(c.Name)
	c.Description = utils.NormSpace(c.Description)
	c.Address = utils.NormSpace(c.Address)
	c.City = utils.NormSpace(c.City)
	c.Region = utils.NormSpace(c.Region)

	source := strings.ToLower(strings.TrimSpace(c.Source))
	if source != "" && hasLegacyToken(source) {
		source = SourceName
	}
	c.Source = source

	c.SourceID = strings.TrimSpace(c.SourceID)
	if hasLegacyToken(c.SourceID) {
		c.SourceID = replaceLegacyTokens(c.SourceID)
	}
	if c.ID == "" {
		c.ID = c.SourceID
	}

	c.SourceURL = strings.TrimSpace(c.SourceURL)
	if c.Source == SourceName && c.SourceID != "" {
		c.SourceURL = companyPathPrefix + "/" + c.SourceID
	} else if hasLegacyToken(c.SourceURL) {
		c.SourceURL = ""
	}

	c.LogoURL = normalizeLogoURL(c.LogoURL)
	c.Phones = normalizePhones(c.Phones)
	c.Emails = normalizeEmails(c.Emails)
	c.Websites = normalizeWebsites(c.Websites)
	c.UNP = utils.DigitsOnly(c.UNP)
	normalizeCategories(c.Categories)
	normalizeCategories(c.Rubrics)
}

func normalizeLogoURL(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || !hasLegacyToken(v) {
		return v
	}
	// keep only the path; legacy hosts are not stored
	if i := strings.Index(v, "://"); i >= 0 {
		rest := v[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			v = rest[j:]
		}
	}
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	return replaceLegacyTokens(strings.TrimSpace(v))
}

func normalizePhones(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if d := utils.DigitsOnly(p); len(d) >= minPhoneDigits {
			out = append(out, d)
		}
	}
	return uniqKeepOrder(out)
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return uniqKeepOrder(out)
}

func normalizeWebsites(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.TrimSpace(w)
		if w == "" || hasLegacyToken(w) {
			continue
		}
		lw := strings.ToLower(w)
		if strings.HasPrefix(lw, "mailto:") || strings.HasPrefix(lw, "tel:") {
			continue
		}
		if !strings.HasPrefix(lw, "http://") && !strings.HasPrefix(lw, "https://") {
			w = "https://" + w
		}
		out = append(out, w)
	}
	return uniqKeepOrder(out)
}

func normalizeCategories(cats []models.Category) {
	for i := range cats {
		cats[i].Name = utils.NormSpace(cats[i].Name)
		cats[i].Slug = strings.TrimSpace(cats[i].Slug)
		if cats[i].Slug != "" {
			cats[i].URL = catalogPathPrefix + "/" + cats[i].Slug
		}
	}
}

func uniqKeepOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
