// Package crawl walks a descending numeric ID space one page at a time,
// pulls a single labelled field from each page and appends every new value
// to a durable store. A failing page is logged and skipped; the walk only
// stops at ID 0, on cancellation or when the store cannot be written.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/rs/zerolog"
)

const statsEvery = 100

// Driver is the part of a browser session the walker needs
type Driver interface {
	Navigate(ctx context.Context, url string) error
	HasElement(ctx context.Context, selector string) (bool, error)
	OuterHTML(ctx context.Context) (string, error)
}

// Stats counts what happened to each visited ID
type Stats struct {
	Visited         int
	Added           int
	Duplicates      int
	Empty           int
	NavFailures     int
	CaptchaTimeouts int
	PageErrors      int
}

func (s Stats) log(event *zerolog.Event) *zerolog.Event {
	return event.
		Int("visited", s.Visited).
		Int("added", s.Added).
		Int("duplicates", s.Duplicates).
		Int("empty", s.Empty).
		Int("nav_failures", s.NavFailures).
		Int("captcha_timeouts", s.CaptchaTimeouts).
		Int("page_errors", s.PageErrors)
}

// Walker is single-threaded and the only writer of its store
type Walker struct {
	cfg    config.CrawlConfig
	driver Driver
	store  Store
	gate   *CaptchaGate
	field  FieldSpec
	log    zerolog.Logger
	stats  Stats

	sleep func(ctx context.Context, d time.Duration)
}

// NewWalker wires a walker from its configuration
func NewWalker(cfg config.CrawlConfig, driver Driver, store Store, esc Escalator, log zerolog.Logger) *Walker {
	poll := config.Ms(cfg.CaptchaPollMs)
	if poll <= 0 {
		poll = time.Second
	}
	return &Walker{
		cfg:    cfg,
		driver: driver,
		store:  store,
		gate: &CaptchaGate{
			Selector:  cfg.CaptchaSelector,
			Timeout:   config.Ms(cfg.CaptchaTimeoutMs),
			Poll:      poll,
			Escalator: esc,
		},
		field: FieldSpec{
			ItemSelector: cfg.ItemSelector,
			Label:        cfg.LabelMarker,
			End:          cfg.EndMarker,
		},
		log:   log,
		sleep: sleepCtx,
	}
}

// Stats returns the counters so far
func (w *Walker) Stats() Stats {
	return w.stats
}

// Run walks from startID down to 1. Seen values are rebuilt from the store
// first. Cancelling ctx ends the walk cleanly with a nil error.
func (w *Walker) Run(ctx context.Context, startID int64) (*models.CrawlState, error) {
	seen, err := w.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	state := models.NewCrawlState(startID, seen)
	w.log.Info().Int64("start_id", startID).Int("known", len(seen)).Msg("crawl started")

	for state.NextID >= 1 && ctx.Err() == nil {
		if err := w.visit(ctx, state, state.NextID); err != nil {
			w.stats.log(w.log.Error().Err(err)).Int64("id", state.NextID).Msg("crawl aborted")
			return state, err
		}

		state.NextID--
		if w.stats.Visited%statsEvery == 0 {
			w.stats.log(w.log.Info()).Int64("next_id", state.NextID).Msg("crawl progress")
		}
		w.sleep(ctx, config.Ms(w.cfg.BetweenIDsMs))
	}

	event := w.log.Info()
	msg := "crawl reached the first id"
	if ctx.Err() != nil {
		msg = "crawl interrupted"
	}
	w.stats.log(event).Int64("next_id", state.NextID).Int("fetched", state.Fetched).Msg(msg)
	return state, nil
}

// visit processes one ID. Only a store write failure is returned; every
// page-level problem, including a value the store rejects, is logged and
// counted.
func (w *Walker) visit(ctx context.Context, state *models.CrawlState, id int64) error {
	w.stats.Visited++
	url := fmt.Sprintf("%s/%d", strings.TrimRight(w.cfg.BaseURL, "/"), id)
	log := w.log.With().Int64("id", id).Logger()

	navTimeout := config.Ms(w.cfg.NavTimeoutMs)
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	err := w.driver.Navigate(navCtx, url)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.stats.NavFailures++
		log.Warn().Err(&models.NavigationError{URL: url, Timeout: navTimeout, Err: err}).Msg("navigation failed")
		w.sleep(ctx, config.Ms(w.cfg.ErrorDelayMs))
		return nil
	}

	if err := w.gate.Check(ctx, w.driver, id, url); err != nil {
		var timeout *models.CaptchaTimeout
		switch {
		case errors.As(err, &timeout):
			w.stats.CaptchaTimeouts++
		case ctx.Err() != nil:
		default:
			w.pageError(ctx, log, err)
		}
		return nil
	}

	markup, err := w.driver.OuterHTML(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.pageError(ctx, log, fmt.Errorf("read page: %w", err))
		}
		return nil
	}
	value, err := ExtractField(markup, w.field)
	if err != nil {
		w.pageError(ctx, log, err)
		return nil
	}
	if value == "" {
		w.stats.Empty++
		log.Debug().Err(models.ErrExtractionEmpty).Msg("skipped")
		return nil
	}

	if state.Has(value) {
		w.stats.Duplicates++
		log.Debug().Str("value", value).Msg("already collected")
		return nil
	}
	if err := w.store.Append(value); err != nil {
		if errors.Is(err, ErrInvalidValue) {
			w.pageError(ctx, log, err)
			return nil
		}
		return err
	}
	state.Register(value)
	w.stats.Added++
	log.Info().Str("value", value).Int("fetched", state.Fetched).Msg("collected")
	return nil
}

func (w *Walker) pageError(ctx context.Context, log zerolog.Logger, err error) {
	w.stats.PageErrors++
	log.Warn().Err(err).Msg("page failed")
	w.sleep(ctx, config.Ms(w.cfg.ErrorDelayMs))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
