package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntOr(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback int
		want     int
	}{
		{"empty", "", 45000, 45000},
		{"valid", "1200", 45000, 1200},
		{"padded", " 300 ", 1, 300},
		{"non numeric", "fast", 250, 250},
		{"zero", "0", 250, 250},
		{"negative", "-5", 250, 250},
		{"float", "1.5", 20000, 20000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntOr(tt.raw, tt.fallback))
		})
	}
}

func TestApplyEnvFallsBackOnInvalidValues(t *testing.T) {
	env := map[string]string{
		"SCRAPER_NAV_TIMEOUT_MS": "abc",
		"SCRAPER_SETTLE_MS":      "100",
		"SCRAPER_MAX_CHARS":      "-1",
		"SCRAPER_BROWSER_PATH":   "/usr/bin/chromium",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	cfg.Sanitize()

	assert.Equal(t, DefaultNavTimeoutMs, cfg.Scrape.NavTimeoutMs)
	assert.Equal(t, 100, cfg.Scrape.SettleMs)
	assert.Equal(t, DefaultMaxChars, cfg.Scrape.MaxChars)
	assert.Equal(t, "/usr/bin/chromium", cfg.Scrape.BrowserPath)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.toml")
	content := `
[scrape]
max_chars = 5000
nav_timeout_ms = 10000

[crawl]
base_url = "https://mirror.example/id"
captcha_mode = "assist"
captcha_timeout_ms = 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Scrape.MaxChars)
	assert.Equal(t, 10000, cfg.Scrape.NavTimeoutMs)
	assert.Equal(t, DefaultUserAgent, cfg.Scrape.UserAgent)
	assert.Equal(t, "https://mirror.example/id", cfg.Crawl.BaseURL)
	assert.Equal(t, CaptchaAssist, cfg.Crawl.CaptchaMode)
	assert.Equal(t, DefaultCaptchaTimeoutMs, cfg.Crawl.CaptchaTimeoutMs)
	assert.Equal(t, DefaultLabelMarker, cfg.Crawl.LabelMarker)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestSanitizeUnknownCaptchaMode(t *testing.T) {
	cfg := Default()
	cfg.Crawl.CaptchaMode = "wait-forever"
	cfg.Sanitize()
	assert.Equal(t, CaptchaUnattended, cfg.Crawl.CaptchaMode)
}

func TestCompileRegexes(t *testing.T) {
	re := CompileRegexes()["challenge"]
	require.NotNil(t, re)
	assert.True(t, re.MatchString("Please VERIFY you are human"))
	assert.True(t, re.MatchString("Attention Required! | Cloudflare"))
	assert.False(t, re.MatchString("Welcome to the site"))
}
