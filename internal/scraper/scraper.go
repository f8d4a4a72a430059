// Package scraper drives a headless browser to pull readable text out of
// JavaScript-heavy pages. A run launches its own browser, waits for the page
// to render, extracts text from the DOM and falls back to scrolling and
// structured data when too little was found.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service runs single-shot extractions
type Service struct {
	cfg        config.ScrapeConfig
	log        zerolog.Logger
	launch     Launcher
	render     RenderWait
	extractor  *TextExtractor
	scroll     ScrollFallback
	structured *StructuredFallback
	blocked    *BlockDetector
}

// NewService creates a service that launches a real browser per run
func NewService(cfg config.ScrapeConfig, log zerolog.Logger) *Service {
	s := &Service{
		cfg:        cfg,
		log:        log,
		render:     RenderWaitFromConfig(cfg),
		extractor:  NewTextExtractor(),
		scroll:     ScrollFallbackFromConfig(cfg),
		structured: NewStructuredFallback(cfg.MinTextLen),
		blocked:    NewBlockDetector(),
	}
	opts := BrowserOptionsFromConfig(cfg)
	s.launch = func(ctx context.Context) (Browser, error) {
		return AcquireWithRetry(ctx, opts, s.log)
	}
	return s
}

// WithLauncher replaces how browsers are started
func (s *Service) WithLauncher(l Launcher) *Service {
	s.launch = l
	return s
}

// Run extracts the text of url. Page-level failures are reported in the
// result with OK=false; the returned error is set only when no browser could
// be started.
func (s *Service) Run(ctx context.Context, url string) (*models.ExtractionResult, error) {
	start := time.Now()
	result := models.NewExtractionResult(url)
	log := s.log.With().Str("run_id", uuid.NewString()).Str("url", url).Logger()

	ctx, cancel := context.WithTimeout(ctx, config.Ms(s.cfg.OverallTimeoutMs))
	defer cancel()

	phase := time.Now()
	browser, err := s.launch(ctx)
	result.Time("launch_ms", phase)
	if err != nil {
		result.Fail(err)
		result.Time("total_ms", start)
		log.Error().Err(err).Int64("total_ms", result.Timings["total_ms"]).Msg("browser launch failed")
		var launchErr *models.LaunchError
		if !errors.As(err, &launchErr) {
			err = &models.LaunchError{Attempts: 1, Err: err}
		}
		return result, err
	}
	defer browser.Release()

	s.extract(ctx, browser, url, result, log)
	result.Blocked = s.blocked.Detect(result)
	result.Time("total_ms", start)

	event := log.Info()
	if !result.OK {
		event = log.Warn()
	}
	event.Bool("ok", result.OK).
		Int("text_len", result.TextLen).
		Str("method", result.Method).
		Bool("blocked", result.Blocked).
		Strs("errors", result.Errors).
		Int64("total_ms", result.Timings["total_ms"]).
		Msg("extraction finished")
	return result, nil
}

func (s *Service) extract(ctx context.Context, page Page, url string, result *models.ExtractionResult, log zerolog.Logger) {
	navTimeout := config.Ms(s.cfg.NavTimeoutMs)
	phase := time.Now()
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	err := page.Navigate(navCtx, url)
	cancel()
	result.Time("goto_ms", phase)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("overall deadline exceeded: %w", ctx.Err())
		}
		navErr := &models.NavigationError{URL: url, Timeout: navTimeout, Err: err}
		result.Fail(navErr)
		log.Warn().Err(navErr).Msg("navigation failed")
		return
	}

	if loc, err := page.Location(ctx); err == nil && loc != "" {
		result.FinalURL = loc
	}
	result.SetStatus(page.StatusFor(result.FinalURL))

	result.Timings["wait_render_ms"] = s.render.Wait(ctx, page, result, log).Milliseconds()

	phase = time.Now()
	extract := s.extractNormalized(result, log)
	text, err := extract(ctx, page)
	result.Time("extract_ms", phase)
	if err != nil {
		s.recordPageErrors(page, result)
		result.Fail(fmt.Errorf("extract: %w", err))
		log.Warn().Err(err).Msg("extraction failed")
		return
	}
	method := models.MethodBody

	if s.scroll.Needed(text) {
		phase = time.Now()
		if rescanned, won := s.scroll.Apply(ctx, page, text, extract, result, log); won {
			text = rescanned
			method = models.MethodScroll
		}
		result.Time("scroll_ms", phase)
	}

	if runeLen(text) < s.cfg.MinTextLen {
		phase = time.Now()
		if structured, m := s.structured.Apply(ctx, page, text, result, log); m != "" {
			text = structured
			method = m
		}
		result.Time("structured_ms", phase)
	}

	s.recordPageErrors(page, result)

	text, truncated := Normalize(text, s.cfg.MaxChars)
	result.OK = true
	result.Text = text
	result.TextLen = runeLen(text)
	result.Truncated = truncated
	result.Method = method
}

// extractNormalized returns the DOM extraction, normalized without a length
// cap so candidates compare by their full size. A failed DOM walk is recorded
// on result and the inner text baseline is used.
func (s *Service) extractNormalized(result *models.ExtractionResult, log zerolog.Logger) func(context.Context, Page) (string, error) {
	return func(ctx context.Context, page Page) (string, error) {
		raw, err := s.extractor.Extract(ctx, page)
		var walkErr *WalkError
		if errors.As(err, &walkErr) {
			result.AddError(models.TagDOMWalk, walkErr.Err.Error())
			log.Debug().Err(walkErr.Err).Msg("dom walk failed, keeping inner text")
			err = nil
		}
		if err != nil {
			return "", err
		}
		text, _ := Normalize(raw, 0)
		return text, nil
	}
}

func (s *Service) recordPageErrors(page Page, result *models.ExtractionResult) {
	for _, msg := range page.PageErrors() {
		result.AddError(models.TagPageError, msg)
	}
}
