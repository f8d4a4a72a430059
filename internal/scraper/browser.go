package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/models"
	"github.com/baont182004/BiLSTM-defacement/internal/retry"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Session owns one browser process and its single tab
type Session struct {
	opts   BrowserOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc
	releaseOnce sync.Once

	idle *idleTracker

	mu          sync.Mutex
	statuses    map[string]int
	lastStatus  int
	pageErrors  []string
	domReady    chan struct{}
	domReadySet bool
}

// Acquire starts one browser process bound to ctx. Cancelling ctx kills the
// process; Release must still be called to free the allocator.
func Acquire(ctx context.Context, opts BrowserOptions, log zerolog.Logger) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, BuildChromeOptions(opts)...)

	debugf := func(format string, args ...interface{}) {
		log.Debug().Msgf("chromedp: "+format, args...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(debugf),
		chromedp.WithErrorf(debugf),
	)

	// an empty Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Session{
		opts:        opts,
		log:         log,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		idle:        newIdleTracker(nil),
		statuses:    make(map[string]int),
		domReady:    make(chan struct{}),
	}, nil
}

// AcquireWithRetry starts and configures a session, retrying with
// exponential backoff. The final failure is wrapped in a LaunchError.
func AcquireWithRetry(ctx context.Context, opts BrowserOptions, log zerolog.Logger) (*Session, error) {
	cfg := retry.DefaultConfig()
	if opts.LaunchRetries >= 0 {
		cfg.MaxRetries = uint64(opts.LaunchRetries)
	}

	var session *Session
	attempts, err := retry.Do(ctx, cfg, "browser launch", func() error {
		s, err := Acquire(ctx, opts, log)
		if err != nil {
			log.Warn().Err(err).Msg("browser launch attempt failed")
			return err
		}
		if err := s.Configure(ctx); err != nil {
			s.Release()
			log.Warn().Err(err).Msg("browser configure attempt failed")
			return err
		}
		session = s
		return nil
	}, func(err error) bool {
		return ctx.Err() == nil
	})
	if err != nil {
		return nil, &models.LaunchError{Attempts: attempts, Err: err}
	}
	return session, nil
}

// Configure applies viewport, user agent, headers and request interception
// to the tab and starts listening for events
func (s *Session) Configure(ctx context.Context) error {
	chromedp.ListenTarget(s.ctx, s.onEvent)

	actions := chromedp.Tasks{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(s.opts.WindowWidth), int64(s.opts.WindowHeight), 1, false),
		emulation.SetUserAgentOverride(s.opts.UserAgent).WithAcceptLanguage(s.opts.AcceptLanguage),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": s.opts.AcceptLanguage}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}
	if s.opts.BlockResources {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		}))
	}

	cctx, cancel := s.bounded(ctx, ConfigureTimeout)
	defer cancel()
	if err := chromedp.Run(cctx, actions); err != nil {
		return fmt.Errorf("configure browser: %w", err)
	}
	return nil
}

// Release closes the tab and the browser process. It is safe to call more than once.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		s.cancel()
		s.allocCancel()
		s.log.Debug().Msg("browser released")
	})
}

// bounded derives a chromedp context from the session that also ends when
// ctx ends or timeout elapses
func (s *Session) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		go s.interceptRequest(e)
	case *network.EventRequestWillBeSent:
		s.idle.started(string(e.RequestID))
	case *network.EventLoadingFinished:
		s.idle.finished(string(e.RequestID))
	case *network.EventLoadingFailed:
		s.idle.finished(string(e.RequestID))
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.Response != nil {
			s.recordStatus(e.Response.URL, int(e.Response.Status))
		}
	case *page.EventDomContentEventFired:
		s.signalDOMReady()
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails != nil {
			s.addPageError(exceptionText(e.ExceptionDetails))
		}
	}
}

func (s *Session) interceptRequest(e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(s.ctx, c.Target)

	var err error
	if blockRequest(e.ResourceType) {
		err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)
	} else {
		err = fetch.ContinueRequest(e.RequestID).Do(ctx)
	}
	if err != nil && s.ctx.Err() == nil {
		s.log.Debug().Err(err).Str("type", e.ResourceType.String()).Msg("request interception failed")
	}
}

// blockRequest reports whether a paused request of type t is failed rather
// than continued
func blockRequest(t network.ResourceType) bool {
	return BlockedResourceTypes[t]
}

func (s *Session) recordStatus(url string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[url] = status
	s.lastStatus = status
}

func (s *Session) addPageError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageErrors = append(s.pageErrors, msg)
}

func (s *Session) signalDOMReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.domReadySet {
		s.domReadySet = true
		close(s.domReady)
	}
}

func (s *Session) armDOMReady() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domReady = make(chan struct{})
	s.domReadySet = false
	return s.domReady
}

func exceptionText(d *runtime.ExceptionDetails) string {
	if d.Exception != nil && d.Exception.Description != "" {
		first, _, _ := strings.Cut(d.Exception.Description, "\n")
		return first
	}
	return d.Text
}

// Navigate loads url and waits for DOMContentLoaded
func (s *Session) Navigate(ctx context.Context, url string) error {
	ready := s.armDOMReady()

	deadline := ActionTimeout
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	cctx, cancel := s.bounded(ctx, deadline)
	defer cancel()

	err := chromedp.Run(cctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errors.New(errorText)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-cctx.Done():
		return cctx.Err()
	}
}

// Location returns the current page URL
func (s *Session) Location(ctx context.Context) (string, error) {
	cctx, cancel := s.bounded(ctx, ActionTimeout)
	defer cancel()
	var loc string
	if err := chromedp.Run(cctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// StatusFor returns the document status for url, falling back to the most
// recent document response
func (s *Session) StatusFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[url]; ok {
		return status
	}
	if status, ok := s.statuses[strings.TrimSuffix(url, "/")]; ok {
		return status
	}
	return s.lastStatus
}

// WaitNetworkIdle blocks until no request has been in flight for idle
func (s *Session) WaitNetworkIdle(ctx context.Context, idle time.Duration) error {
	return s.idle.wait(ctx, idle)
}

const bodyTextLengthScript = `document.body && document.body.innerText ? document.body.innerText.trim().length : 0`

// BodyTextLength returns the trimmed length of document.body.innerText
func (s *Session) BodyTextLength(ctx context.Context) (int, error) {
	cctx, cancel := s.bounded(ctx, ActionTimeout)
	defer cancel()
	var n int
	if err := chromedp.Run(cctx, chromedp.Evaluate(bodyTextLengthScript, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

const snapshotScript = `(() => {
	const text = (el) => (el && el.innerText) || "";
	return {
		body: text(document.body),
		document: text(document.documentElement),
		nav: text(document.querySelector("nav")),
		footer: text(document.querySelector("footer")),
	};
})()`

// Snapshot reads the inner text of body, document element, nav and footer
func (s *Session) Snapshot(ctx context.Context) (TextSnapshot, error) {
	cctx, cancel := s.bounded(ctx, ActionTimeout)
	defer cancel()
	var snap TextSnapshot
	if err := chromedp.Run(cctx, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return TextSnapshot{}, err
	}
	return snap, nil
}

// DocumentTree returns the whole DOM, shadow roots and frame documents included
func (s *Session) DocumentTree(ctx context.Context) (*cdp.Node, error) {
	cctx, cancel := s.bounded(ctx, ActionTimeout)
	defer cancel()
	var root *cdp.Node
	err := chromedp.Run(cctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		root, err = dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return root, nil
}

const scrollScript = `(async () => {
	const delay = (ms) => new Promise((resolve) => setTimeout(resolve, ms));
	const step = Math.max(window.innerHeight * %g, %d);
	for (let i = 0; i < %d; i += 1) {
		window.scrollBy(0, step);
		await delay(%d);
	}
	window.scrollTo(0, 0);
	return true;
})()`

// ScrollPass scrolls down in steps to trigger lazy loading, then back to top
func (s *Session) ScrollPass(ctx context.Context, steps int, settle time.Duration) error {
	script := fmt.Sprintf(scrollScript, ScrollStepRatio, MinScrollStepPx, steps, settle.Milliseconds())
	budget := time.Duration(steps)*settle + ActionTimeout
	cctx, cancel := s.bounded(ctx, budget)
	defer cancel()
	var done bool
	return chromedp.Run(cctx, chromedp.Evaluate(script, &done, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

// OuterHTML returns the serialized document
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	cctx, cancel := s.bounded(ctx, ActionTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(cctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html)); err != nil {
		return "", err
	}
	return html, nil
}

// HasElement reports whether selector matches anything in the current document
func (s *Session) HasElement(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	cctx, cancel := s.bounded(ctx, ActionTimeout)
	defer cancel()
	var found bool
	script := fmt.Sprintf(`!!document.querySelector(%s)`, quoted)
	if err := chromedp.Run(cctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// PageErrors returns uncaught page exceptions seen so far
func (s *Session) PageErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.pageErrors))
	copy(out, s.pageErrors)
	return out
}
