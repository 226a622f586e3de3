package catalog

import (
	"sort"
	"strings"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/slug"
	"github.com/hyperjump/biznesinfo/pkg/utils"
)

// Field weights for fallback scoring.
const (
	weightName        = 3
	weightCategory    = 2
	weightDescription = 1
	weightService     = 3
)

var stopwords = map[string]struct{}{
	"в": {}, "во": {}, "на": {}, "и": {}, "или": {}, "для": {}, "по": {}, "с": {}, "со": {},
	"из": {}, "у": {}, "к": {}, "от": {}, "до": {}, "за": {}, "о": {}, "об": {},
	"ищу": {}, "найти": {}, "найдите": {}, "нужен": {}, "нужна": {}, "нужно": {}, "нужны": {},
	"где": {}, "купить": {}, "заказать": {}, "компания": {}, "компании": {}, "компанию": {},
	"поставщик": {}, "поставщика": {}, "поставщики": {}, "поставщиков": {},
	"the": {}, "a": {}, "in": {}, "for": {}, "of": {},
}

type entry struct {
	company     *models.Company
	slug        string
	order       int
	city        string
	region      string
	name        []string
	categories  []string
	description []string
}

func newEntry(c *models.Company, order int) *entry {
	return &entry{
		company:     c,
		slug:        slug.Canonicalize(c.ID),
		order:       order,
		city:        utils.Fold(c.City),
		region:      utils.Fold(c.Region),
		name:        utils.Tokens(c.Name),
		categories:  utils.Tokens(strings.Join(c.CategoryNames(), " ")),
		description: utils.Tokens(c.Description),
	}
}

// view returns a shallow copy with the canonical slug filled in.
func (e *entry) view() *models.Company {
	cp := *e.company
	cp.Slug = e.slug
	return &cp
}

type terms struct {
	query    []string
	service  []string
	keywords []string
}

func newTerms(q *models.SearchQuery) terms {
	return terms{
		query:    stems(q.Query),
		service:  stems(q.Service),
		keywords: stems(q.Keywords),
	}
}

func (t terms) empty() bool {
	return len(t.query) == 0 && len(t.service) == 0 && len(t.keywords) == 0
}

// stems tokenizes s, drops stopwords and one-rune tokens, and cuts longer
// tokens to a prefix so inflected Russian forms match ("трубы" -> "тру").
func stems(s string) []string {
	toks := utils.Tokens(s)
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if _, stop := stopwords[t]; stop {
			continue
		}
		r := []rune(t)
		if len(r) < 2 {
			continue
		}
		if len(r) >= 5 {
			r = r[:len(r)-2]
		}
		out = append(out, string(r))
	}
	return out
}

func anyPrefix(words []string, stem string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, stem) {
			return true
		}
	}
	return false
}

func (e *entry) score(t terms) int {
	total := 0
	for _, s := range t.query {
		switch {
		case anyPrefix(e.name, s):
			total += weightName
		case anyPrefix(e.categories, s):
			total += weightCategory
		case anyPrefix(e.description, s):
			total += weightDescription
		}
	}
	for _, s := range t.service {
		switch {
		case anyPrefix(e.categories, s):
			total += weightService
		case anyPrefix(e.description, s):
			total += weightDescription
		}
	}
	for _, s := range t.keywords {
		if anyPrefix(e.name, s) || anyPrefix(e.categories, s) || anyPrefix(e.description, s) {
			total++
		}
	}
	return total
}

type scored struct {
	e     *entry
	score int
}

// sortScored orders by score descending, then catalog order.
func sortScored(s []scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].e.order < s[j].e.order
	})
}
