package scraper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	live    atomic.Int32
	maxLive atomic.Int32
	fail    map[string]bool
}

func (r *countingRunner) Run(ctx context.Context, url string) (*models.ExtractionResult, error) {
	n := r.live.Add(1)
	defer r.live.Add(-1)
	for {
		m := r.maxLive.Load()
		if n <= m || r.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	result := models.NewExtractionResult(url)
	if r.fail[url] {
		err := &models.LaunchError{Attempts: 1, Err: errors.New("no chrome")}
		result.Fail(err)
		return result, err
	}
	result.OK = true
	result.Text = "text of " + url
	return result, nil
}

func TestPoolRunAllKeepsOrderAndBound(t *testing.T) {
	runner := &countingRunner{}
	urls := []string{"a", "b", "c", "d", "e", "f", "g"}

	results, err := NewPool(runner, 2).RunAll(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, results, len(urls))
	for i, u := range urls {
		assert.Equal(t, "text of "+u, results[i].Text)
	}
	assert.LessOrEqual(t, runner.maxLive.Load(), int32(2))
}

func TestPoolRunAllReportsLaunchFailure(t *testing.T) {
	runner := &countingRunner{fail: map[string]bool{"b": true}}

	results, err := NewPool(runner, 3).RunAll(context.Background(), []string{"a", "b", "c"})
	var launchErr *models.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.True(t, results[2].OK)
}
