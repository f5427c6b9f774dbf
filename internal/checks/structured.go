package checks

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type structuredData struct{ check.Base }

func newStructuredData(Options) check.Check {
	return structuredData{check.NewBase("structured_data", "Structured Data", check.CategoryStructuredData, check.SeverityMedium)}
}

func (c structuredData) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	doc := p.Doc()
	var blocks []string
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "application/ld+json") {
			blocks = append(blocks, strings.TrimSpace(s.Text()))
		}
	})
	// nested itemscopes belong to their outermost item
	microdata := doc.Find("[itemscope]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered("[itemscope]").Length() == 0
	}).Length()

	if len(blocks) == 0 && microdata == 0 {
		return c.One(p, check.StatusWarning, "No schema markup found",
			"Describe the page with JSON-LD structured data", "No JSON-LD or microdata"), nil
	}

	types := make(map[string]struct{})
	invalid := 0
	for _, block := range blocks {
		var data any
		if err := json.Unmarshal([]byte(block), &data); err != nil {
			invalid++
			continue
		}
		for _, t := range schemaTypes(data) {
			types[t] = struct{}{}
		}
	}

	names := make([]string, 0, len(types))
	for t := range types {
		names = append(names, t)
	}
	sort.Strings(names)

	if invalid > 0 {
		return c.One(p, check.StatusFail,
			fmt.Sprintf("%d of %d JSON-LD blocks are not valid JSON", invalid, len(blocks)),
			"Fix the JSON syntax so search engines can read the markup", sample(names, 5)), nil
	}

	found := len(blocks) + microdata
	evidence := sample(names, 5)
	if microdata > 0 {
		evidence = strings.TrimPrefix(evidence+fmt.Sprintf(", %d microdata items", microdata), ", ")
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("Found %s", plural(found, "structured data block")), "", evidence), nil
}

// schemaTypes collects @type values, descending into arrays and @graph.
func schemaTypes(data any) []string {
	var types []string
	switch v := data.(type) {
	case map[string]any:
		switch t := v["@type"].(type) {
		case string:
			types = append(types, t)
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok {
					types = append(types, s)
				}
			}
		}
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				types = append(types, schemaTypes(item)...)
			}
		}
	case []any:
		for _, item := range v {
			types = append(types, schemaTypes(item)...)
		}
	}
	return types
}
