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

// RenderWait decides when a page has rendered enough to read. Two checks race:
// the network going quiet and the body text growing past MinTextLen.
type RenderWait struct {
	NetworkIdle time.Duration
	MinTextLen  int
	Timeout     time.Duration
	Poll        time.Duration
}

// RenderWaitFromConfig builds the strategy from the scrape configuration
func RenderWaitFromConfig(cfg config.ScrapeConfig) RenderWait {
	return RenderWait{
		NetworkIdle: config.Ms(cfg.NetworkIdleMs),
		MinTextLen:  cfg.MinTextLen,
		Timeout:     config.Ms(cfg.RenderTimeoutMs),
		Poll:        RenderCheckPoll,
	}
}

type checkOutcome struct {
	tag string
	err error
}

// Wait returns as soon as one check succeeds. Failures of checks that settled
// before that point are recorded on result as soft errors; a check still
// running when the race is decided is cancelled and its outcome only logged.
// If both checks fail the page is extracted anyway.
func (w RenderWait) Wait(ctx context.Context, page Page, result *models.ExtractionResult, log zerolog.Logger) time.Duration {
	start := time.Now()

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan checkOutcome, 2)
	go func() {
		outcomes <- checkOutcome{tag: models.TagNetworkIdle, err: w.networkIdle(raceCtx, page)}
	}()
	go func() {
		outcomes <- checkOutcome{tag: models.TagTextWait, err: w.textPresent(raceCtx, page)}
	}()

	pending := 2
	for pending > 0 {
		o := <-outcomes
		pending--
		if o.err == nil {
			log.Debug().Str("check", o.tag).Dur("elapsed", time.Since(start)).Msg("render wait satisfied")
			break
		}
		result.AddError(o.tag, o.err.Error())
		log.Debug().Str("check", o.tag).Err(o.err).Msg("render check failed")
	}

	if pending > 0 {
		cancel()
		go func() {
			o := <-outcomes
			log.Debug().Str("check", o.tag).AnErr("late", o.err).Msg("render check settled after race")
		}()
	}

	return time.Since(start)
}

func (w RenderWait) networkIdle(ctx context.Context, page Page) error {
	cctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()
	return w.timeoutErr(page.WaitNetworkIdle(cctx, w.NetworkIdle))
}

func (w RenderWait) textPresent(ctx context.Context, page Page) error {
	cctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	poll := w.Poll
	if poll <= 0 {
		poll = RenderCheckPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		// evaluation errors are expected while the document is replaced
		if n, err := page.BodyTextLength(cctx); err == nil && n > w.MinTextLen {
			return nil
		}
		select {
		case <-cctx.Done():
			return w.timeoutErr(cctx.Err())
		case <-ticker.C:
		}
	}
}

func (w RenderWait) timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timeout after %dms", w.Timeout.Milliseconds())
	}
	return err
}
