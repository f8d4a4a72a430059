package scraper

import (
	"context"
	"fmt"
	"strings"
)

// WalkError reports a failed DOM walk. The text returned alongside it is the
// inner text baseline alone.
type WalkError struct {
	Err error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("read document tree: %v", e.Err)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// TextExtractor pulls rendered text out of a page: inner text plus every text
// node of the DOM, shadow roots and frames included.
type TextExtractor struct{}

// NewTextExtractor creates a text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract returns the untruncated text of page. The longer of body and
// document inner text is followed by the DOM walk, and oversized nav and
// footer regions are dropped once. When only the walk fails, the baseline is
// returned together with a *WalkError.
func (te *TextExtractor) Extract(ctx context.Context, page Page) (string, error) {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("read inner text: %w", err)
	}
	baseline := longer(snap.Body, snap.Document)

	root, err := page.DocumentTree(ctx)
	if err != nil {
		return stripBoilerplate(baseline, snap.Nav, snap.Footer), &WalkError{Err: err}
	}
	walked := strings.Join(collectTextNodes(root), " ")

	combined := baseline
	if walked != "" {
		combined = baseline + "\n" + walked
	}
	return stripBoilerplate(combined, snap.Nav, snap.Footer), nil
}
