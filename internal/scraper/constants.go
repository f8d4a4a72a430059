package scraper

import (
	"time"

	"github.com/chromedp/cdproto/network"
)

// Timeout constants
const (
	ActionTimeout      = 45 * time.Second
	RenderCheckPoll    = 100 * time.Millisecond
	IdlePollInterval   = 100 * time.Millisecond
	ConfigureTimeout   = 15 * time.Second
	DefaultScrollDelay = 450 * time.Millisecond
)

// Extraction thresholds
const (
	BoilerplateLimit = 1500
	MinScrollStepPx  = 400
	ScrollStepRatio  = 0.8
	BlockedTextScan  = 2000
)

// Browser configuration
const (
	DefaultWindowWidth  = 1366
	DefaultWindowHeight = 768
)

// BlockedResourceTypes are aborted by request interception. They cost load
// time without contributing text.
var BlockedResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeImage:      true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeMedia:      true,
}

// BlockedStatuses are HTTP statuses that usually mean anti-bot protection
var BlockedStatuses = map[int]bool{
	403: true,
	429: true,
	503: true,
}

// Elements whose text nodes are never collected by the DOM walk
var skippedElements = map[string]bool{
	"SCRIPT":   true,
	"STYLE":    true,
	"NOSCRIPT": true,
	"TEMPLATE": true,
}
