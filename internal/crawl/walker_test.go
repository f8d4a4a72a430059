package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const captchaSel = `img[src*="captcha"]`

func mirrorPage(domain string) string {
	return `<html><body><ul>
<li>Notifier: someone</li>
<li>Domain: ` + domain + ` IP address: 203.0.113.7</li>
<li>System: Linux</li>
</ul></body></html>`
}

// fakeDriver serves scripted pages keyed by the trailing id of the URL
type fakeDriver struct {
	mu       sync.Mutex
	pages    map[int64]string
	navErrs  map[int64]error
	captchas map[int64]time.Duration

	current     int64
	navigatedAt time.Time
	visits      []int64
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	id, err := strconv.ParseInt(url[strings.LastIndex(url, "/")+1:], 10, 64)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visits = append(d.visits, id)
	if err := d.navErrs[id]; err != nil {
		return err
	}
	d.current = id
	d.navigatedAt = time.Now()
	return nil
}

func (d *fakeDriver) HasElement(ctx context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if selector != captchaSel {
		return false, nil
	}
	visibleFor, ok := d.captchas[d.current]
	return ok && time.Since(d.navigatedAt) < visibleFor, nil
}

func (d *fakeDriver) OuterHTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[d.current], nil
}

type memStore struct {
	lines   []string
	initial []string
	failOn  string
	failErr error
}

func (s *memStore) Load() (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	for _, v := range s.initial {
		seen[v] = struct{}{}
	}
	return seen, nil
}

func (s *memStore) Append(value string) error {
	if value == s.failOn {
		if s.failErr != nil {
			return s.failErr
		}
		return errors.New("disk full")
	}
	s.lines = append(s.lines, value)
	return nil
}

func (s *memStore) Close() error { return nil }

type recordingEscalator struct {
	detected []int64
	cleared  []int64
	timeouts []*models.CaptchaTimeout
}

func (e *recordingEscalator) Detected(id int64, url string) { e.detected = append(e.detected, id) }
func (e *recordingEscalator) Cleared(id int64, waited time.Duration) { e.cleared = append(e.cleared, id) }
func (e *recordingEscalator) TimedOut(err *models.CaptchaTimeout) { e.timeouts = append(e.timeouts, err) }

func testCrawlConfig() config.CrawlConfig {
	cfg := config.DefaultCrawlConfig()
	cfg.BaseURL = "https://mirror.example/mirror/id/"
	cfg.NavTimeoutMs = 100
	cfg.CaptchaTimeoutMs = 120
	cfg.CaptchaPollMs = 5
	return cfg
}

func newTestWalker(cfg config.CrawlConfig, d Driver, s Store, esc Escalator) (*Walker, *[]time.Duration) {
	w := NewWalker(cfg, d, s, esc, zerolog.Nop())
	var sleeps []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) { sleeps = append(sleeps, d) }
	return w, &sleeps
}

func TestWalkerCollectsAndDedups(t *testing.T) {
	d := &fakeDriver{pages: map[int64]string{
		5: mirrorPage("a.example"),
		4: mirrorPage("b.example"),
		3: mirrorPage("a.example"),
		2: `<html><body><p>No such mirror</p></body></html>`,
		1: mirrorPage("old.example"),
	}}
	store := &memStore{initial: []string{"old.example"}}
	w, sleeps := newTestWalker(testCrawlConfig(), d, store, &recordingEscalator{})

	state, err := w.Run(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.example", "b.example"}, store.lines)
	assert.Equal(t, 2, state.Fetched)
	assert.Equal(t, int64(0), state.NextID)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, d.visits)

	stats := w.Stats()
	assert.Equal(t, 5, stats.Visited)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 1, stats.Empty)

	for _, s := range *sleeps {
		assert.Equal(t, 200*time.Millisecond, s)
	}
	assert.Len(t, *sleeps, 5)
}

func TestWalkerSurvivesNavigationFailure(t *testing.T) {
	d := &fakeDriver{
		pages:   map[int64]string{3: mirrorPage("x.example"), 1: mirrorPage("y.example")},
		navErrs: map[int64]error{2: errors.New("net::ERR_TIMED_OUT")},
	}
	store := &memStore{}
	w, sleeps := newTestWalker(testCrawlConfig(), d, store, &recordingEscalator{})

	_, err := w.Run(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"x.example", "y.example"}, store.lines)
	assert.Equal(t, 1, w.Stats().NavFailures)
	assert.Contains(t, *sleeps, time.Second, "error backoff before advancing")
}

func TestWalkerCaptchaClearedInTime(t *testing.T) {
	d := &fakeDriver{
		pages:    map[int64]string{1: mirrorPage("solved.example")},
		captchas: map[int64]time.Duration{1: 40 * time.Millisecond},
	}
	store := &memStore{}
	esc := &recordingEscalator{}
	w, _ := newTestWalker(testCrawlConfig(), d, store, esc)

	_, err := w.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, esc.detected)
	assert.Equal(t, []int64{1}, esc.cleared)
	assert.Equal(t, []string{"solved.example"}, store.lines)
}

func TestWalkerCaptchaTimeoutSkipsOnlyThatID(t *testing.T) {
	d := &fakeDriver{
		pages: map[int64]string{
			2: mirrorPage("blocked.example"),
			1: mirrorPage("next.example"),
		},
		captchas: map[int64]time.Duration{2: 130 * time.Millisecond},
	}
	store := &memStore{}
	esc := &recordingEscalator{}
	w, _ := newTestWalker(testCrawlConfig(), d, store, esc)

	state, err := w.Run(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, esc.timeouts, 1)
	assert.Equal(t, int64(2), esc.timeouts[0].ID)
	assert.Equal(t, 120*time.Millisecond, esc.timeouts[0].Timeout)
	assert.Equal(t, []string{"next.example"}, store.lines)
	assert.Equal(t, 1, w.Stats().CaptchaTimeouts)
	assert.Equal(t, int64(0), state.NextID)
}

func TestWalkerStopsOnCancel(t *testing.T) {
	d := &fakeDriver{pages: map[int64]string{}}
	for i := int64(1); i <= 1000; i++ {
		d.pages[i] = mirrorPage("d" + strconv.FormatInt(i, 10) + ".example")
	}
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWalker(testCrawlConfig(), d, store, &recordingEscalator{}, zerolog.Nop())
	w.sleep = func(context.Context, time.Duration) {
		if len(store.lines) == 3 {
			cancel()
		}
	}

	state, err := w.Run(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, store.lines, 3)
	assert.Equal(t, int64(997), state.NextID)
	assert.Equal(t, 3, state.Fetched)
}

func TestWalkerStoreFailureIsFatal(t *testing.T) {
	d := &fakeDriver{pages: map[int64]string{2: mirrorPage("bad.example"), 1: mirrorPage("never.example")}}
	store := &memStore{failOn: "bad.example"}
	w, _ := newTestWalker(testCrawlConfig(), d, store, &recordingEscalator{})

	state, err := w.Run(context.Background(), 2)
	require.Error(t, err)
	assert.False(t, state.Has("bad.example"), "seen only grows after a durable append")
	assert.Equal(t, []int64{2}, d.visits)
}

func TestWalkerMultiLineValueDoesNotStopTheWalk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.txt")
	d := &fakeDriver{pages: map[int64]string{
		3: mirrorPage("first.example"),
		2: "<ul><li>Domain: evil\n.example</li></ul>",
		1: mirrorPage("last.example"),
	}}
	store := NewFileStore(path)
	w, _ := newTestWalker(testCrawlConfig(), d, store, &recordingEscalator{})

	state, err := w.Run(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, []int64{3, 2, 1}, d.visits)
	assert.Equal(t, int64(0), state.NextID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first.example\nevil .example\nlast.example\n", string(data))
}

func TestWalkerRejectedValueIsSkipped(t *testing.T) {
	d := &fakeDriver{pages: map[int64]string{2: mirrorPage("odd.example"), 1: mirrorPage("fine.example")}}
	store := &memStore{failOn: "odd.example", failErr: fmt.Errorf("%w %q", ErrInvalidValue, "odd.example")}
	w, _ := newTestWalker(testCrawlConfig(), d, store, &recordingEscalator{})

	state, err := w.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"fine.example"}, store.lines)
	assert.False(t, state.Has("odd.example"))
	assert.Equal(t, 1, w.Stats().PageErrors)
	assert.Equal(t, []int64{2, 1}, d.visits)
}

func TestWalkerResumesFromFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls", "defacement_url.txt")
	d := &fakeDriver{pages: map[int64]string{
		3: mirrorPage("one.example"),
		2: mirrorPage("two.example"),
		1: mirrorPage("one.example"),
	}}

	first := NewFileStore(path)
	w, _ := newTestWalker(testCrawlConfig(), d, first, &recordingEscalator{})
	_, err := w.Run(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// a restarted walk over the same ids adds nothing
	second := NewFileStore(path)
	w, _ = newTestWalker(testCrawlConfig(), d, second, &recordingEscalator{})
	state, err := w.Run(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, second.Close())
	assert.Zero(t, state.Fetched)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one.example\ntwo.example\n", string(data))
}
