package scraper

import (
	"context"

	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runner performs one single-shot extraction
type Runner interface {
	Run(ctx context.Context, url string) (*models.ExtractionResult, error)
}

// Pool runs independent extractions with a bounded number of live browsers
type Pool struct {
	runner Runner
	slots  *semaphore.Weighted
}

// NewPool creates a pool allowing size concurrent runs
func NewPool(runner Runner, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		runner: runner,
		slots:  semaphore.NewWeighted(int64(size)),
	}
}

// RunAll extracts every url and returns the results in input order. A launch
// failure fills that url's slot with its failed result and does not stop the
// others; the first such error is returned alongside the results.
func (p *Pool) RunAll(ctx context.Context, urls []string) ([]*models.ExtractionResult, error) {
	results := make([]*models.ExtractionResult, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	for i, u := range urls {
		i, u := i, u
		if err := p.slots.Acquire(ctx, 1); err != nil {
			results[i] = models.NewExtractionResult(u)
			results[i].Fail(err)
			errs[i] = err
			continue
		}
		g.Go(func() error {
			defer p.slots.Release(1)
			results[i], errs[i] = p.runner.Run(ctx, u)
			if results[i] == nil {
				results[i] = models.NewExtractionResult(u)
				if errs[i] != nil {
					results[i].Fail(errs[i])
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
