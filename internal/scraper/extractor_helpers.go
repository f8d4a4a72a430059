package scraper

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chromedp/cdproto/cdp"
)

// Normalize collapses every whitespace run to one space, trims the ends and
// cuts the result to maxChars runes. It reports whether anything was cut.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string, maxChars int) (string, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	out := strings.Join(fields, " ")

	if maxChars <= 0 || utf8.RuneCountInString(out) <= maxChars {
		return out, false
	}

	cut := 0
	for i := range out {
		if cut == maxChars {
			out = out[:i]
			break
		}
		cut++
	}
	return strings.TrimRightFunc(out, unicode.IsSpace), true
}

// collectTextNodes walks the DOM with an explicit stack and returns the
// trimmed, non-empty text nodes in document order. Shadow roots and frame
// documents are entered; script-like elements are not.
func collectTextNodes(root *cdp.Node) []string {
	if root == nil {
		return nil
	}

	var texts []string
	stack := []*cdp.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}

		if n.NodeType == cdp.NodeTypeText {
			if t := strings.TrimSpace(n.NodeValue); t != "" {
				texts = append(texts, t)
			}
			continue
		}
		if skippedElements[strings.ToUpper(n.NodeName)] {
			continue
		}

		// pushed in reverse so the stack pops them in document order
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
		for i := len(n.ShadowRoots) - 1; i >= 0; i-- {
			stack = append(stack, n.ShadowRoots[i])
		}
		if n.ContentDocument != nil {
			stack = append(stack, n.ContentDocument)
		}
	}
	return texts
}

// stripBoilerplate removes the first occurrence of an oversized nav or footer
// region from text. Both sides are compared in normalized form.
func stripBoilerplate(text string, regions ...string) string {
	text, _ = Normalize(text, 0)
	for _, region := range regions {
		region, _ = Normalize(region, 0)
		if runeLen(region) <= BoilerplateLimit {
			continue
		}
		text = strings.Replace(text, region, " ", 1)
	}
	return text
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// longer returns whichever candidate has more runes, preferring a on ties
func longer(a, b string) string {
	if runeLen(b) > runeLen(a) {
		return b
	}
	return a
}
