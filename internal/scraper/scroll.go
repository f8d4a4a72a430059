package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/rs/zerolog"
)

// ScrollFallback scrolls a page that rendered too little text so lazy content
// loads, then extracts again
type ScrollFallback struct {
	Steps       int
	Settle      time.Duration
	IdleFor     time.Duration
	IdleTimeout time.Duration
	MinTextLen  int
}

// ScrollFallbackFromConfig builds the fallback from the scrape configuration
func ScrollFallbackFromConfig(cfg config.ScrapeConfig) ScrollFallback {
	return ScrollFallback{
		Steps:       cfg.ScrollSteps,
		Settle:      config.Ms(cfg.SettleMs),
		IdleFor:     config.Ms(cfg.ScrollIdleMs),
		IdleTimeout: config.Ms(cfg.ScrollIdleTOMs),
		MinTextLen:  cfg.MinTextLen,
	}
}

// Needed reports whether candidate is short enough to warrant scrolling
func (sf ScrollFallback) Needed(candidate string) bool {
	return runeLen(candidate) < sf.MinTextLen
}

// Apply scrolls, waits for the network and re-extracts. The returned text is
// never shorter than candidate; the bool reports whether the rescan won.
func (sf ScrollFallback) Apply(ctx context.Context, page Page, candidate string, extract func(context.Context, Page) (string, error), result *models.ExtractionResult, log zerolog.Logger) (string, bool) {
	settle := sf.Settle
	if settle <= 0 {
		settle = DefaultScrollDelay
	}
	if err := page.ScrollPass(ctx, sf.Steps, settle); err != nil {
		log.Debug().Err(err).Msg("scroll pass failed")
	}

	idleCtx, cancel := context.WithTimeout(ctx, sf.IdleTimeout)
	err := page.WaitNetworkIdle(idleCtx, sf.IdleFor)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timeout after %dms", sf.IdleTimeout.Milliseconds())
		}
		result.AddError(models.TagScrollIdle, err.Error())
	}

	rescanned, err := extract(ctx, page)
	if err != nil {
		log.Debug().Err(err).Msg("re-extract after scroll failed")
		return candidate, false
	}
	if runeLen(rescanned) > runeLen(candidate) {
		log.Debug().Int("before", runeLen(candidate)).Int("after", runeLen(rescanned)).Msg("scroll rescan kept")
		return rescanned, true
	}
	return candidate, false
}
