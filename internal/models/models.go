// Package models defines the data structures shared by the extraction service
// and the crawl walker: extraction results, crawl state and the error taxonomy.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Error tags prefixed to entries of ExtractionResult.Errors
const (
	TagFatal       = "fatal"
	TagNetworkIdle = "network_idle"
	TagTextWait    = "text_wait"
	TagScrollIdle  = "scroll_idle"
	TagPageError   = "pageerror"
	TagJSONLD      = "jsonld"
	TagDOMWalk     = "dom_walk"
)

// Extraction methods reported in ExtractionResult.Method
const (
	MethodBody        = "body"
	MethodScroll      = "scroll"
	MethodJSONLD      = "jsonld"
	MethodReadability = "readability"
)

// ExtractionResult is the outcome of one single-shot extraction.
// When OK is false, Text is empty and Errors holds at least one entry.
type ExtractionResult struct {
	OK         bool             `json:"ok"`
	Text       string           `json:"text"`
	FinalURL   string           `json:"finalUrl"`
	HTTPStatus *int             `json:"httpStatus"`
	Timings    map[string]int64 `json:"timings"`
	Errors     []string         `json:"errors"`
	Truncated  bool             `json:"truncated"`
	Method     string           `json:"method,omitempty"`
	TextLen    int              `json:"textLen"`
	Blocked    bool             `json:"blocked"`
}

// NewExtractionResult returns an empty, not-yet-successful result for url
func NewExtractionResult(url string) *ExtractionResult {
	return &ExtractionResult{
		FinalURL: url,
		Timings:  make(map[string]int64),
		Errors:   []string{},
	}
}

// AddError appends a "tag:detail" entry to the error log
func (r *ExtractionResult) AddError(tag string, detail string) {
	r.Errors = append(r.Errors, Tagged(tag, detail))
}

// Time records the elapsed milliseconds of a phase since start
func (r *ExtractionResult) Time(phase string, start time.Time) {
	r.Timings[phase] = time.Since(start).Milliseconds()
}

// Fail marks the result as failed and drops any partial text
func (r *ExtractionResult) Fail(err error) {
	r.OK = false
	r.Text = ""
	r.TextLen = 0
	r.Truncated = false
	r.Method = ""
	r.AddError(TagFatal, err.Error())
}

// SetStatus stores the HTTP status, ignoring unknown (zero) codes
func (r *ExtractionResult) SetStatus(status int) {
	if status <= 0 {
		return
	}
	r.HTTPStatus = &status
}

// Tagged formats a soft or fatal error entry
func Tagged(tag string, detail string) string {
	return fmt.Sprintf("%s:%s", tag, detail)
}

// CrawlState is the walker's in-memory view of progress.
// Seen always contains every value durably appended to the store.
type CrawlState struct {
	NextID  int64
	Seen    map[string]struct{}
	Fetched int
}

// NewCrawlState builds the state for a walk starting at startID
func NewCrawlState(startID int64, seen map[string]struct{}) *CrawlState {
	if seen == nil {
		seen = make(map[string]struct{})
	}
	return &CrawlState{
		NextID: startID,
		Seen:   seen,
	}
}

// Has reports whether value was already collected
func (s *CrawlState) Has(value string) bool {
	_, ok := s.Seen[value]
	return ok
}

// Register records a value after it has been durably appended
func (s *CrawlState) Register(value string) {
	s.Seen[value] = struct{}{}
	s.Fetched++
}

// ErrExtractionEmpty means the crawled page carried no matching field.
// The walker skips such pages without treating them as failures.
var ErrExtractionEmpty = errors.New("no matching field on page")

// LaunchError represents a browser that could not be started
type LaunchError struct {
	Attempts int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NavigationError represents a navigation that timed out or failed on the network
type NavigationError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed (timeout %s): %v", e.URL, e.Timeout, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// CaptchaTimeout represents a challenge that was not cleared in time
type CaptchaTimeout struct {
	ID      int64
	Waited  time.Duration
	Timeout time.Duration
}

func (e *CaptchaTimeout) Error() string {
	return fmt.Sprintf("captcha on id %d not cleared after %s (budget %s)", e.ID, e.Waited.Round(time.Millisecond), e.Timeout)
}
