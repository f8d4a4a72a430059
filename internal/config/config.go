// Package config holds the tunables of the extraction service and the crawl
// walker. Values come from defaults, an optional TOML file and environment
// variables, in that order.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default values
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"

	DefaultNavTimeoutMs     = 45000
	DefaultSettleMs         = 450
	DefaultMaxChars         = 20000
	DefaultRenderTimeoutMs  = 30000
	DefaultNetworkIdleMs    = 1200
	DefaultMinTextLen       = 200
	DefaultScrollSteps      = 6
	DefaultScrollIdleMs     = 800
	DefaultScrollIdleTOMs   = 12000
	DefaultOverallTimeoutMs = 90000
	DefaultLaunchRetries    = 2
	DefaultConcurrency      = 3

	DefaultCrawlBaseURL      = "https://www.zone-h.org/mirror/id"
	DefaultCrawlStore        = "ml/data/urls/defacement_url.txt"
	DefaultCrawlNavTimeoutMs = 20000
	DefaultCaptchaTimeoutMs  = 120000
	DefaultCaptchaPollMs     = 1000
	DefaultBetweenIDsMs      = 200
	DefaultErrorDelayMs      = 1000
	DefaultCaptchaSelector   = `img[src*="captcha"]`
	DefaultItemSelector      = "li"
	DefaultLabelMarker       = "Domain:"
	DefaultEndMarker         = "IP address:"
)

// Captcha handling modes for the crawl walker
const (
	CaptchaUnattended = "unattended"
	CaptchaAssist     = "assist"
)

// ScrapeConfig configures single-shot extraction
type ScrapeConfig struct {
	UserAgent        string `toml:"user_agent"`
	AcceptLanguage   string `toml:"accept_language"`
	BrowserPath      string `toml:"browser_path"`
	Headless         bool   `toml:"headless"`
	WindowWidth      int    `toml:"window_width"`
	WindowHeight     int    `toml:"window_height"`
	NavTimeoutMs     int    `toml:"nav_timeout_ms"`
	SettleMs         int    `toml:"settle_ms"`
	MaxChars         int    `toml:"max_chars"`
	RenderTimeoutMs  int    `toml:"render_timeout_ms"`
	NetworkIdleMs    int    `toml:"network_idle_ms"`
	MinTextLen       int    `toml:"min_text_len"`
	ScrollSteps      int    `toml:"scroll_steps"`
	ScrollIdleMs     int    `toml:"scroll_idle_ms"`
	ScrollIdleTOMs   int    `toml:"scroll_idle_timeout_ms"`
	OverallTimeoutMs int    `toml:"overall_timeout_ms"`
	LaunchRetries    int    `toml:"launch_retries"`
	Concurrency      int    `toml:"concurrency"`
}

// CrawlConfig configures the sequential crawl walker
type CrawlConfig struct {
	BaseURL          string `toml:"base_url"`
	StorePath        string `toml:"store"`
	NavTimeoutMs     int    `toml:"nav_timeout_ms"`
	CaptchaTimeoutMs int    `toml:"captcha_timeout_ms"`
	CaptchaPollMs    int    `toml:"captcha_poll_ms"`
	CaptchaMode      string `toml:"captcha_mode"`
	CaptchaSelector  string `toml:"captcha_selector"`
	BetweenIDsMs     int    `toml:"between_ids_ms"`
	ErrorDelayMs     int    `toml:"error_delay_ms"`
	ItemSelector     string `toml:"item_selector"`
	LabelMarker      string `toml:"label_marker"`
	EndMarker        string `toml:"end_marker"`
}

// Config is the root of the TOML file
type Config struct {
	Scrape ScrapeConfig `toml:"scrape"`
	Crawl  CrawlConfig  `toml:"crawl"`
}

// DefaultScrapeConfig returns extraction defaults
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		UserAgent:        DefaultUserAgent,
		AcceptLanguage:   DefaultAcceptLanguage,
		Headless:         true,
		WindowWidth:      1366,
		WindowHeight:     768,
		NavTimeoutMs:     DefaultNavTimeoutMs,
		SettleMs:         DefaultSettleMs,
		MaxChars:         DefaultMaxChars,
		RenderTimeoutMs:  DefaultRenderTimeoutMs,
		NetworkIdleMs:    DefaultNetworkIdleMs,
		MinTextLen:       DefaultMinTextLen,
		ScrollSteps:      DefaultScrollSteps,
		ScrollIdleMs:     DefaultScrollIdleMs,
		ScrollIdleTOMs:   DefaultScrollIdleTOMs,
		OverallTimeoutMs: DefaultOverallTimeoutMs,
		LaunchRetries:    DefaultLaunchRetries,
		Concurrency:      DefaultConcurrency,
	}
}

// DefaultCrawlConfig returns walker defaults
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		BaseURL:          DefaultCrawlBaseURL,
		StorePath:        DefaultCrawlStore,
		NavTimeoutMs:     DefaultCrawlNavTimeoutMs,
		CaptchaTimeoutMs: DefaultCaptchaTimeoutMs,
		CaptchaPollMs:    DefaultCaptchaPollMs,
		CaptchaMode:      CaptchaUnattended,
		CaptchaSelector:  DefaultCaptchaSelector,
		BetweenIDsMs:     DefaultBetweenIDsMs,
		ErrorDelayMs:     DefaultErrorDelayMs,
		ItemSelector:     DefaultItemSelector,
		LabelMarker:      DefaultLabelMarker,
		EndMarker:        DefaultEndMarker,
	}
}

// Default returns the full default configuration
func Default() Config {
	return Config{
		Scrape: DefaultScrapeConfig(),
		Crawl:  DefaultCrawlConfig(),
	}
}

// Load reads an optional TOML file over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.Sanitize()
	return cfg, nil
}

// ApplyEnv overrides values from environment variables looked up with getenv
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("SCRAPER_USER_AGENT")); v != "" {
		c.Scrape.UserAgent = v
	}
	if v := strings.TrimSpace(getenv("SCRAPER_ACCEPT_LANGUAGE")); v != "" {
		c.Scrape.AcceptLanguage = v
	}
	if v := strings.TrimSpace(getenv("SCRAPER_BROWSER_PATH")); v != "" {
		c.Scrape.BrowserPath = v
	}
	c.Scrape.NavTimeoutMs = IntOr(getenv("SCRAPER_NAV_TIMEOUT_MS"), c.Scrape.NavTimeoutMs)
	c.Scrape.SettleMs = IntOr(getenv("SCRAPER_SETTLE_MS"), c.Scrape.SettleMs)
	c.Scrape.MaxChars = IntOr(getenv("SCRAPER_MAX_CHARS"), c.Scrape.MaxChars)
	c.Scrape.OverallTimeoutMs = IntOr(getenv("SCRAPER_OVERALL_TIMEOUT_MS"), c.Scrape.OverallTimeoutMs)

	if v := strings.TrimSpace(getenv("SCRAPER_CRAWL_BASE_URL")); v != "" {
		c.Crawl.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("SCRAPER_CRAWL_STORE")); v != "" {
		c.Crawl.StorePath = v
	}
	if v := strings.TrimSpace(getenv("SCRAPER_CAPTCHA_MODE")); v != "" {
		c.Crawl.CaptchaMode = v
	}
	c.Crawl.CaptchaTimeoutMs = IntOr(getenv("SCRAPER_CAPTCHA_TIMEOUT_MS"), c.Crawl.CaptchaTimeoutMs)
}

// Sanitize replaces non-positive numeric values with their defaults
func (c *Config) Sanitize() {
	d := Default()
	s := &c.Scrape
	s.NavTimeoutMs = positiveOr(s.NavTimeoutMs, d.Scrape.NavTimeoutMs)
	s.SettleMs = positiveOr(s.SettleMs, d.Scrape.SettleMs)
	s.MaxChars = positiveOr(s.MaxChars, d.Scrape.MaxChars)
	s.RenderTimeoutMs = positiveOr(s.RenderTimeoutMs, d.Scrape.RenderTimeoutMs)
	s.NetworkIdleMs = positiveOr(s.NetworkIdleMs, d.Scrape.NetworkIdleMs)
	s.MinTextLen = positiveOr(s.MinTextLen, d.Scrape.MinTextLen)
	s.ScrollSteps = positiveOr(s.ScrollSteps, d.Scrape.ScrollSteps)
	s.ScrollIdleMs = positiveOr(s.ScrollIdleMs, d.Scrape.ScrollIdleMs)
	s.ScrollIdleTOMs = positiveOr(s.ScrollIdleTOMs, d.Scrape.ScrollIdleTOMs)
	s.OverallTimeoutMs = positiveOr(s.OverallTimeoutMs, d.Scrape.OverallTimeoutMs)
	s.WindowWidth = positiveOr(s.WindowWidth, d.Scrape.WindowWidth)
	s.WindowHeight = positiveOr(s.WindowHeight, d.Scrape.WindowHeight)
	s.Concurrency = positiveOr(s.Concurrency, d.Scrape.Concurrency)
	if s.LaunchRetries < 0 {
		s.LaunchRetries = d.Scrape.LaunchRetries
	}
	if s.UserAgent == "" {
		s.UserAgent = d.Scrape.UserAgent
	}

	k := &c.Crawl
	k.NavTimeoutMs = positiveOr(k.NavTimeoutMs, d.Crawl.NavTimeoutMs)
	k.CaptchaTimeoutMs = positiveOr(k.CaptchaTimeoutMs, d.Crawl.CaptchaTimeoutMs)
	k.CaptchaPollMs = positiveOr(k.CaptchaPollMs, d.Crawl.CaptchaPollMs)
	k.BetweenIDsMs = positiveOr(k.BetweenIDsMs, d.Crawl.BetweenIDsMs)
	k.ErrorDelayMs = positiveOr(k.ErrorDelayMs, d.Crawl.ErrorDelayMs)
	if k.CaptchaMode != CaptchaAssist {
		k.CaptchaMode = CaptchaUnattended
	}
	if k.BaseURL == "" {
		k.BaseURL = d.Crawl.BaseURL
	}
	if k.StorePath == "" {
		k.StorePath = d.Crawl.StorePath
	}
	if k.CaptchaSelector == "" {
		k.CaptchaSelector = d.Crawl.CaptchaSelector
	}
	if k.ItemSelector == "" {
		k.ItemSelector = d.Crawl.ItemSelector
	}
	if k.LabelMarker == "" {
		k.LabelMarker = d.Crawl.LabelMarker
	}
	if k.EndMarker == "" {
		k.EndMarker = d.Crawl.EndMarker
	}
}

// IntOr parses a positive integer, returning fallback for empty, invalid or
// non-positive input
func IntOr(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Ms converts a millisecond count to a duration
func Ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Challenge page patterns, matched case-insensitively
var ChallengePatterns = []string{
	"captcha",
	"cloudflare",
	"attention required",
	"access denied",
	"forbidden",
	"verifying you are human",
	"verify you are human",
	"checking your browser",
	"please wait while we verify",
	"why have i been blocked",
	"are you a robot",
}

// CompileRegexes compiles the patterns used to classify blocked pages
func CompileRegexes() map[string]*regexp.Regexp {
	quoted := make([]string, 0, len(ChallengePatterns))
	for _, p := range ChallengePatterns {
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	return map[string]*regexp.Regexp{
		"challenge": regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`),
	}
}
