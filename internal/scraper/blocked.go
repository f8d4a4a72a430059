package scraper

import (
	"regexp"
	"strings"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"
)

// BlockDetector flags results that look like anti-bot interstitials
type BlockDetector struct {
	challenge *regexp.Regexp
}

// NewBlockDetector compiles the challenge patterns once
func NewBlockDetector() *BlockDetector {
	return &BlockDetector{challenge: config.CompileRegexes()["challenge"]}
}

// Detect reports whether result came from a blocked or challenge page.
// Only page exceptions are searched among the errors; other entries carry
// the requested URL, which says nothing about the response.
// It only inspects the result and never changes it.
func (bd *BlockDetector) Detect(result *models.ExtractionResult) bool {
	if result.HTTPStatus != nil && BlockedStatuses[*result.HTTPStatus] {
		return true
	}
	prefix := models.TagPageError + ":"
	for _, e := range result.Errors {
		if detail, ok := strings.CutPrefix(e, prefix); ok && bd.challenge.MatchString(detail) {
			return true
		}
	}
	return bd.challenge.MatchString(prefixRunes(result.Text, BlockedTextScan))
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
