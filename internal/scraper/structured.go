package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// StructuredFallback recovers text from the page markup when the rendered DOM
// carries too little: schema.org JSON-LD first, then a readability pass.
type StructuredFallback struct {
	MinTextLen int
	sanitizer  *bluemonday.Policy
}

// NewStructuredFallback creates the fallback with a strict HTML policy
func NewStructuredFallback(minTextLen int) *StructuredFallback {
	return &StructuredFallback{
		MinTextLen: minTextLen,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// Apply returns the structured candidate and its method when it is long
// enough and longer than candidate. Otherwise candidate stands and method is
// empty.
func (sf *StructuredFallback) Apply(ctx context.Context, page Page, candidate string, result *models.ExtractionResult, log zerolog.Logger) (string, string) {
	markup, err := page.OuterHTML(ctx)
	if err != nil {
		result.AddError(models.TagJSONLD, err.Error())
		return candidate, ""
	}

	text, method, err := sf.FromHTML(markup)
	if err != nil {
		result.AddError(models.TagJSONLD, err.Error())
		return candidate, ""
	}
	text, _ = Normalize(text, 0)

	if runeLen(text) < sf.MinTextLen || runeLen(text) <= runeLen(candidate) {
		log.Debug().Int("structured_len", runeLen(text)).Int("dom_len", runeLen(candidate)).Msg("structured candidate rejected")
		return candidate, ""
	}
	return text, method
}

// FromHTML extracts the best structured candidate from markup
func (sf *StructuredFallback) FromHTML(markup string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	if body := sf.jsonLDText(doc); runeLen(body) >= sf.MinTextLen {
		return body, models.MethodJSONLD, nil
	}

	article, err := readability.FromReader(strings.NewReader(markup), nil)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}
	return article.TextContent, models.MethodReadability, nil
}

// jsonLDText returns the longest articleBody, description or headline found in
// the page's JSON-LD blocks, HTML stripped
func (sf *StructuredFallback) jsonLDText(doc *goquery.Document) string {
	best := ""
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}
		for _, v := range jsonLDStrings(data) {
			clean := strings.TrimSpace(html.UnescapeString(sf.sanitizer.Sanitize(v)))
			best = longer(best, clean)
		}
	})
	return best
}

var jsonLDTextKeys = []string{"articleBody", "description", "headline"}

// jsonLDStrings collects text fields from objects, arrays and @graph entries
func jsonLDStrings(data interface{}) []string {
	var out []string
	stack := []interface{}{data}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := cur.(type) {
		case []interface{}:
			stack = append(stack, v...)
		case map[string]interface{}:
			for _, key := range jsonLDTextKeys {
				if s, ok := v[key].(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if graph, ok := v["@graph"]; ok {
				stack = append(stack, graph)
			}
			if main, ok := v["mainEntity"]; ok {
				stack = append(stack, main)
			}
		}
	}
	return out
}
