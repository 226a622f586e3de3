// Package keyword provides a Bleve full-text index of catalog companies that
// can serve as the primary search backend.
package keyword

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/pkg/utils"
)

// Indexed field names.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldCategories  = "categories"
	fieldRubrics     = "rubrics"
	fieldCity        = "city"
	fieldRegion      = "region"
	fieldOrder       = "order"
)

const docType = "company"

// Lookup hydrates a hit id into the catalog record.
type Lookup func(id string) (*models.Company, bool)

// newMapping builds the company mapping. Text fields use the Russian analyzer
// (stopwords plus snowball stemming) so "труб" matches "трубы" and function
// words like "в" or "ищу" never become match terms.
// City and region are stored folded and matched exactly.
func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = ru.AnalyzerName
	text.Store = false
	for _, f := range []string{fieldName, fieldDescription, fieldCategories, fieldRubrics} {
		doc.AddFieldMappingsAt(f, text)
	}
	kw := bleve.NewKeywordFieldMapping()
	kw.Store = false
	doc.AddFieldMappingsAt(fieldCity, kw)
	doc.AddFieldMappingsAt(fieldRegion, kw)
	num := bleve.NewNumericFieldMapping()
	num.Store = false
	doc.AddFieldMappingsAt(fieldOrder, num)

	im.AddDocumentMapping(docType, doc)
	im.DefaultType = docType
	im.DefaultMapping = doc
	return im
}

// document converts a company into the indexed field map. order keeps catalog
// order available for browse sorting.
func document(c *models.Company, order int) map[string]interface{} {
	return map[string]interface{}{
		fieldName:        c.Name,
		fieldDescription: c.Description,
		fieldCategories:  strings.Join(names(c.Categories), " "),
		fieldRubrics:     strings.Join(names(c.Rubrics), " "),
		fieldCity:        utils.Fold(c.City),
		fieldRegion:      utils.Fold(c.Region),
		fieldOrder:       float64(order),
	}
}

func names(cats []models.Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		if c.Name != "" {
			out = append(out, c.Name)
		}
	}
	return out
}
