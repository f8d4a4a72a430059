package crawl

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/rs/zerolog"
)

// Escalator is told about challenges the walker cannot clear on its own
type Escalator interface {
	Detected(id int64, url string)
	Cleared(id int64, waited time.Duration)
	TimedOut(err *models.CaptchaTimeout)
}

// LogEscalator reports challenges through the logger only. It suits
// unattended runs where nobody can solve them.
type LogEscalator struct {
	log zerolog.Logger
}

// NewLogEscalator creates an escalator writing to log
func NewLogEscalator(log zerolog.Logger) *LogEscalator {
	return &LogEscalator{log: log}
}

func (e *LogEscalator) Detected(id int64, url string) {
	e.log.Warn().Int64("id", id).Str("url", url).Msg("captcha detected, waiting for it to clear")
}

func (e *LogEscalator) Cleared(id int64, waited time.Duration) {
	e.log.Info().Int64("id", id).Dur("waited", waited).Msg("captcha cleared")
}

func (e *LogEscalator) TimedOut(err *models.CaptchaTimeout) {
	e.log.Error().Err(err).Int64("id", err.ID).Msg("captcha not cleared, skipping id")
}

// AssistEscalator additionally prompts an operator who watches a headful
// browser and can solve the challenge by hand
type AssistEscalator struct {
	*LogEscalator
	prompt  io.Writer
	timeout time.Duration
}

// NewAssistEscalator prompts on w, usually stderr
func NewAssistEscalator(log zerolog.Logger, w io.Writer, timeout time.Duration) *AssistEscalator {
	return &AssistEscalator{LogEscalator: NewLogEscalator(log), prompt: w, timeout: timeout}
}

func (e *AssistEscalator) Detected(id int64, url string) {
	e.LogEscalator.Detected(id, url)
	fmt.Fprintf(e.prompt, "\nCAPTCHA on id %d (%s): solve it in the browser window within %s.\n", id, url, e.timeout)
}

func (e *AssistEscalator) TimedOut(err *models.CaptchaTimeout) {
	e.LogEscalator.TimedOut(err)
	fmt.Fprintf(e.prompt, "CAPTCHA on id %d was not solved in time, moving on.\n", err.ID)
}

// NewEscalator picks the escalator for a configured captcha mode
func NewEscalator(mode string, log zerolog.Logger, prompt io.Writer, timeout time.Duration) Escalator {
	if mode == config.CaptchaAssist {
		return NewAssistEscalator(log, prompt, timeout)
	}
	return NewLogEscalator(log)
}

// CaptchaGate detects a challenge marker and waits a bounded time for it to
// disappear
type CaptchaGate struct {
	Selector  string
	Timeout   time.Duration
	Poll      time.Duration
	Escalator Escalator
}

// Check returns nil when no challenge is shown or it cleared in time, and a
// *models.CaptchaTimeout when it did not
func (g *CaptchaGate) Check(ctx context.Context, d Driver, id int64, url string) error {
	present, err := d.HasElement(ctx, g.Selector)
	if err != nil {
		return fmt.Errorf("check captcha marker: %w", err)
	}
	if !present {
		return nil
	}

	g.Escalator.Detected(id, url)
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	ticker := time.NewTicker(g.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			timeout := &models.CaptchaTimeout{ID: id, Waited: time.Since(start), Timeout: g.Timeout}
			g.Escalator.TimedOut(timeout)
			return timeout
		case <-ticker.C:
		}

		present, err := d.HasElement(waitCtx, g.Selector)
		if err == nil && !present {
			g.Escalator.Cleared(id, time.Since(start))
			return nil
		}
	}
}
