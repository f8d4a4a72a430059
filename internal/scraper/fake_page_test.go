package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// fakePage is a scripted Page for pipeline tests
type fakePage struct {
	mu sync.Mutex

	navErr     error
	location   string
	status     int
	idleErr    error
	idleDelay  time.Duration
	textLens   []int
	snapshots  []TextSnapshot
	tree       *cdp.Node
	treeErr    error
	html       string
	pageErrors []string
	scrolls    int
	released   int
	elements   map[string]bool

	snapshotCalls int
	textCalls     int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	if p.location == "" {
		p.location = url
	}
	return nil
}

func (p *fakePage) Location(ctx context.Context) (string, error) {
	return p.location, nil
}

func (p *fakePage) StatusFor(url string) int {
	return p.status
}

// WaitNetworkIdle sleeps idleDelay, then returns idleErr. A zero idleDelay
// with no idleErr succeeds immediately; a negative one blocks until ctx ends.
func (p *fakePage) WaitNetworkIdle(ctx context.Context, idle time.Duration) error {
	if p.idleDelay < 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-time.After(p.idleDelay):
		return p.idleErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) BodyTextLength(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.textLens) == 0 {
		return 0, errors.New("no body")
	}
	i := p.textCalls
	if i >= len(p.textLens) {
		i = len(p.textLens) - 1
	}
	p.textCalls++
	return p.textLens[i], nil
}

// Snapshot returns snapshots in order, repeating the last one
func (p *fakePage) Snapshot(ctx context.Context) (TextSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return TextSnapshot{}, errors.New("target closed")
	}
	i := p.snapshotCalls
	if i >= len(p.snapshots) {
		i = len(p.snapshots) - 1
	}
	p.snapshotCalls++
	return p.snapshots[i], nil
}

func (p *fakePage) DocumentTree(ctx context.Context) (*cdp.Node, error) {
	return p.tree, p.treeErr
}

func (p *fakePage) ScrollPass(ctx context.Context, steps int, settle time.Duration) error {
	p.scrolls++
	return nil
}

func (p *fakePage) OuterHTML(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) HasElement(ctx context.Context, selector string) (bool, error) {
	return p.elements[selector], nil
}

func (p *fakePage) PageErrors() []string {
	return p.pageErrors
}

func (p *fakePage) Release() {
	p.released++
}

func textNode(s string) *cdp.Node {
	return &cdp.Node{NodeType: cdp.NodeTypeText, NodeName: "#text", NodeValue: s}
}

func element(name string, children ...*cdp.Node) *cdp.Node {
	return &cdp.Node{NodeType: cdp.NodeTypeElement, NodeName: strings.ToUpper(name), Children: children}
}
