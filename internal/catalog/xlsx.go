package catalog

import (
	"fmt"
	"strings"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads companies from the first sheet of an .xlsx export. The first row
// is a header naming company fields; list cells are separated by ";" and category
// cells may carry "slug|name" pairs.
func ReadXLSX(path string) ([]*models.Company, LoadStats, error) {
	var stats LoadStats
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, stats, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, stats, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := make([]*models.Company, 0, len(rows)-1)
	for _, row := range rows[1:] {
		co := &models.Company{}
		empty := true
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			empty = false
			setField(co, header[i], cell)
		}
		if empty {
			continue
		}
		if co.ID == "" && co.SourceID == "" {
			stats.Skipped++
			continue
		}
		out = append(out, co)
		stats.Loaded++
	}
	return out, stats, nil
}

func setField(co *models.Company, field, v string) {
	switch field {
	case "id":
		co.ID = v
	case "name":
		co.Name = v
	case "description":
		co.Description = v
	case "city":
		co.City = v
	case "region":
		co.Region = v
	case "address":
		co.Address = v
	case "phones":
		co.Phones = splitList(v)
	case "emails":
		co.Emails = splitList(v)
	case "websites":
		co.Websites = splitList(v)
	case "unp":
		co.UNP = v
	case "logo_url":
		co.LogoURL = v
	case "categories":
		co.Categories = parseCategories(v)
	case "rubrics":
		co.Rubrics = parseCategories(v)
	case "source":
		co.Source = v
	case "source_id":
		co.SourceID = v
	case "source_url":
		co.SourceURL = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseCategories(v string) []models.Category {
	items := splitList(v)
	out := make([]models.Category, 0, len(items))
	for _, it := range items {
		if slug, name, ok := strings.Cut(it, "|"); ok {
			out = append(out, models.Category{Slug: strings.TrimSpace(slug), Name: strings.TrimSpace(name)})
			continue
		}
		out = append(out, models.Category{Name: it})
	}
	return out
}
