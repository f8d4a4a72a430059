package scraper

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// eventSession is a Session without a browser, enough to drive onEvent
func eventSession() *Session {
	return &Session{
		log:      zerolog.Nop(),
		idle:     newIdleTracker(nil),
		statuses: make(map[string]int),
		domReady: make(chan struct{}),
	}
}

func documentResponse(url string, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{URL: url, Status: status},
	}
}

func TestSessionStatusFor(t *testing.T) {
	s := eventSession()
	assert.Zero(t, s.StatusFor("https://example.com/"), "no document response yet")

	s.onEvent(documentResponse("https://example.com", 301))
	s.onEvent(documentResponse("https://example.com/home", 200))
	s.onEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{URL: "https://cdn.example/app.js", Status: 404},
	})

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"exact match", "https://example.com/home", 200},
		{"trailing slash fallback", "https://example.com/", 301},
		{"last document response", "https://example.com/elsewhere", 200},
		{"subresources never count", "https://cdn.example/app.js", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.StatusFor(tt.url))
		})
	}
}

func TestSessionCapturesPageErrors(t *testing.T) {
	s := eventSession()

	s.onEvent(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:      "Uncaught",
		Exception: &runtime.RemoteObject{Description: "TypeError: x is undefined\n    at main.js:1:5"},
	}})
	s.onEvent(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{Text: "Uncaught SyntaxError"}})
	s.onEvent(&runtime.EventExceptionThrown{})

	errs := s.PageErrors()
	assert.Equal(t, []string{"TypeError: x is undefined", "Uncaught SyntaxError"}, errs)

	errs[0] = "changed"
	assert.Equal(t, "TypeError: x is undefined", s.PageErrors()[0], "callers get a copy")
}

func TestSessionTracksInflightRequests(t *testing.T) {
	s := eventSession()

	s.onEvent(&network.EventRequestWillBeSent{RequestID: "1"})
	s.onEvent(&network.EventRequestWillBeSent{RequestID: "2"})
	assert.Zero(t, s.idle.quietFor())

	s.onEvent(&network.EventLoadingFinished{RequestID: "1"})
	assert.Zero(t, s.idle.quietFor())

	s.onEvent(&network.EventLoadingFailed{RequestID: "2"})
	assert.Empty(t, s.idle.inflight)
}

func TestSessionSignalsDOMReadyOnce(t *testing.T) {
	s := eventSession()
	ready := s.armDOMReady()

	s.onEvent(&page.EventDomContentEventFired{})
	s.onEvent(&page.EventDomContentEventFired{})

	select {
	case <-ready:
	default:
		t.Fatal("DOMContentLoaded was not signalled")
	}
}

func TestBlockRequest(t *testing.T) {
	tests := []struct {
		resource network.ResourceType
		want     bool
	}{
		{network.ResourceTypeImage, true},
		{network.ResourceTypeStylesheet, true},
		{network.ResourceTypeFont, true},
		{network.ResourceTypeMedia, true},
		{network.ResourceTypeDocument, false},
		{network.ResourceTypeScript, false},
		{network.ResourceTypeXHR, false},
		{network.ResourceTypeFetch, false},
	}
	for _, tt := range tests {
		t.Run(tt.resource.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, blockRequest(tt.resource))
		})
	}
}
