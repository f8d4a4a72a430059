package crawl

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldSpec locates a labelled value inside a list item, e.g. the text
// between "Domain:" and "IP address:"
type FieldSpec struct {
	ItemSelector string
	Label        string
	End          string
}

// ExtractField returns the value of the first item containing the label with
// every whitespace run collapsed to one space, or "" when no item matches. An absent end marker takes the rest of
// the item text.
func ExtractField(markup string, spec FieldSpec) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var value string
	doc.Find(spec.ItemSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		_, after, found := strings.Cut(text, spec.Label)
		if !found {
			return true
		}
		if spec.End != "" {
			after, _, _ = strings.Cut(after, spec.End)
		}
		value = strings.Join(strings.Fields(after), " ")
		return false
	})
	return value, nil
}
