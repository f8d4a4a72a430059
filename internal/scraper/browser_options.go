// Package scraper provides browser configuration options for Chrome automation.
package scraper

import (
	"strings"

	"github.com/baont182004/BiLSTM-defacement/internal/config"

	"github.com/chromedp/chromedp"
)

// BrowserOptions contains configuration for browser automation
type BrowserOptions struct {
	Headless       bool
	BlockResources bool
	WindowWidth    int
	WindowHeight   int
	UserAgent      string
	AcceptLanguage string
	ExecPath       string
	LaunchRetries  int
}

// DefaultBrowserOptions returns standard headless options with resource blocking
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:       true,
		BlockResources: true,
		WindowWidth:    DefaultWindowWidth,
		WindowHeight:   DefaultWindowHeight,
		UserAgent:      config.DefaultUserAgent,
		AcceptLanguage: config.DefaultAcceptLanguage,
		LaunchRetries:  config.DefaultLaunchRetries,
	}
}

// BrowserOptionsFromConfig maps the scrape configuration onto browser options
func BrowserOptionsFromConfig(cfg config.ScrapeConfig) BrowserOptions {
	opts := DefaultBrowserOptions()
	opts.Headless = cfg.Headless
	if cfg.WindowWidth > 0 {
		opts.WindowWidth = cfg.WindowWidth
	}
	if cfg.WindowHeight > 0 {
		opts.WindowHeight = cfg.WindowHeight
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	opts.ExecPath = strings.TrimSpace(cfg.BrowserPath)
	opts.LaunchRetries = cfg.LaunchRetries
	return opts
}

// BuildChromeOptions creates Chrome options based on BrowserOptions
func BuildChromeOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
	)

	if opts.Headless {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", "new"))
	} else {
		chromeOpts = append(chromeOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("start-maximized", true),
		)
	}

	if opts.UserAgent != "" {
		chromeOpts = append(chromeOpts, chromedp.UserAgent(opts.UserAgent))
	}

	if opts.ExecPath != "" {
		chromeOpts = append(chromeOpts, chromedp.ExecPath(opts.ExecPath))
	}

	return chromeOpts
}

// stealthScript runs before any page script on every new document
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
		configurable: true
	});
	window.chrome = window.chrome || { runtime: {} };
	Object.defineProperty(navigator, 'languages', {
		get: () => ['vi-VN', 'vi', 'en-US', 'en'],
		configurable: true
	});
	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
		configurable: true
	});
`
