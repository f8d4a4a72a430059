package scraper

import (
	"context"
	"sync"
	"time"
)

// idleTracker counts in-flight requests from CDP network events. The network
// is idle once nothing has been in flight for the requested duration.
type idleTracker struct {
	mu         sync.Mutex
	inflight   map[string]struct{}
	lastChange time.Time
	now        func() time.Time
}

func newIdleTracker(now func() time.Time) *idleTracker {
	if now == nil {
		now = time.Now
	}
	return &idleTracker{
		inflight:   make(map[string]struct{}),
		lastChange: now(),
		now:        now,
	}
}

func (t *idleTracker) started(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastChange = t.now()
}

func (t *idleTracker) finished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	t.lastChange = t.now()
}

// quietFor returns how long no request has been in flight, or zero while any is
func (t *idleTracker) quietFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inflight) > 0 {
		return 0
	}
	return t.now().Sub(t.lastChange)
}

// wait blocks until the network has been quiet for idle or ctx is done
func (t *idleTracker) wait(ctx context.Context, idle time.Duration) error {
	ticker := time.NewTicker(IdlePollInterval)
	defer ticker.Stop()
	for {
		if t.quietFor() >= idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
