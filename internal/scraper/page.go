package scraper

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// TextSnapshot holds the rendered inner text of the regions the extractor reads
type TextSnapshot struct {
	Body     string `json:"body"`
	Document string `json:"document"`
	Nav      string `json:"nav"`
	Footer   string `json:"footer"`
}

// Page is the set of browser operations the extraction pipeline drives.
// Calls on one Page are made sequentially.
type Page interface {
	// Navigate returns once DOMContentLoaded fired for the new document
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	// StatusFor returns the HTTP status of the document response for url, or 0
	StatusFor(url string) int
	WaitNetworkIdle(ctx context.Context, idle time.Duration) error
	BodyTextLength(ctx context.Context) (int, error)
	Snapshot(ctx context.Context) (TextSnapshot, error)
	DocumentTree(ctx context.Context) (*cdp.Node, error)
	ScrollPass(ctx context.Context, steps int, settle time.Duration) error
	OuterHTML(ctx context.Context) (string, error)
	HasElement(ctx context.Context, selector string) (bool, error)
	PageErrors() []string
}

// Browser is a Page backed by a process that must be released
type Browser interface {
	Page
	Release()
}

// Launcher starts and configures a browser bound to ctx
type Launcher func(ctx context.Context) (Browser, error)
