package progress_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/progress"
	"github.com/ieltslisten/learner/internal/query"
	"github.com/ieltslisten/learner/internal/storage"
)

type tokens struct{}

func (tokens) AccessToken() string { return "tok" }
func (tokens) RefreshToken() string { return "ref" }
func (tokens) SetTokens(context.Context, string, string) error { return nil }
func (tokens) Clear(context.Context) error { return nil }

func TestPositionStore(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	ps := progress.NewPositionStore(kv)

	_, ok, err := ps.Get(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ps.Save(ctx, 4, 0))
	_, ok, _ = ps.Get(ctx, 4)
	assert.False(t, ok, "zero is not stored")

	require.NoError(t, ps.Save(ctx, 4, 73.25))
	pos, ok, err := ps.Get(ctx, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 73.25, pos)

	raw, err := kv.Get(ctx, "audio-position-4")
	require.NoError(t, err)
	assert.Equal(t, "73.25", string(raw))

	require.NoError(t, ps.Clear(ctx, 4))
	_, ok, _ = ps.Get(ctx, 4)
	assert.False(t, ok)
}

type fakeTicks struct {
	mu    sync.Mutex
	ticks []int
	done  []bool
	err   error
}

func (f *fakeTicks) Tick(_ context.Context, _ int64, seconds int, completed bool) (*progress.ListeningSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.ticks = append(f.ticks, seconds)
	f.done = append(f.done, completed)
	return &progress.ListeningSession{DurationSec: seconds, Completed: completed}, nil
}

func TestTrackerAccumulatesPlaybackNotSeeks(t *testing.T) {
	ctx := context.Background()
	ps := progress.NewPositionStore(storage.NewMemStore())
	ticks := &fakeTicks{}
	tr := progress.NewTracker(9, ps, ticks, 5*time.Second)
	cur := &progress.Cursor{}

	for _, p := range []float64{0, 4.5, 9.5, 300, 304} {
		cur.Set(p)
		require.NoError(t, tr.Sample(ctx, cur))
	}
	assert.Equal(t, 13.5, tr.Listened(), "0→4.5→9.5 then seek, then 4s")

	pos, _, _ := ps.Get(ctx, 9)
	assert.Equal(t, 304.0, pos)

	require.NoError(t, tr.Flush(ctx, false))
	assert.Equal(t, []int{13}, ticks.ticks)
	assert.Equal(t, 0.5, tr.Listened())

	require.NoError(t, tr.Flush(ctx, false))
	assert.Len(t, ticks.ticks, 1, "under a second is held back")

	require.NoError(t, tr.Flush(ctx, true))
	assert.Equal(t, []int{13, 1}, ticks.ticks)
	assert.Equal(t, []bool{false, true}, ticks.done)
}

func TestTrackerFlushFailureKeepsTime(t *testing.T) {
	ctx := context.Background()
	ticks := &fakeTicks{err: errors.New("offline")}
	tr := progress.NewTracker(9, progress.NewPositionStore(storage.NewMemStore()), ticks, time.Second)
	cur := &progress.Cursor{}
	for _, p := range []float64{1, 2, 3} {
		cur.Set(p)
		require.NoError(t, tr.Sample(ctx, cur))
	}
	require.Error(t, tr.Flush(ctx, false))
	assert.Equal(t, 2.0, tr.Listened())
}

func TestTrackerRestoreAndRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ps := progress.NewPositionStore(storage.NewMemStore())
	require.NoError(t, ps.Save(ctx, 3, 42))
	tr := progress.NewTracker(3, ps, nil, 10*time.Millisecond)

	pos, err := tr.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42.0, pos)

	cur := &progress.Cursor{}
	cur.Set(42.01)
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, cur) }()
	require.Eventually(t, func() bool { return tr.Listened() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestListeningReportsAndStops(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemStore()
	ps := progress.NewPositionStore(kv)
	ticks := &fakeTicks{}
	l := progress.NewListening(ps, ticks, time.Hour)

	require.NoError(t, l.Report(ctx, 5, 12))
	pos, ok, err := ps.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 12.0, pos)

	require.NoError(t, l.Stop(ctx, 5, true))
	assert.Equal(t, []bool{true}, ticks.done)

	require.NoError(t, l.Report(ctx, 6, 3))
	require.NoError(t, l.Reset(ctx, 6))
	_, ok, _ = ps.Get(ctx, 6)
	assert.False(t, ok)

	require.NoError(t, l.Report(ctx, 7, 3))
	require.NoError(t, l.Close(ctx))
}

func TestAPI(t *testing.T) {
	var progressCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/progress/", func(w http.ResponseWriter, r *http.Request) {
		progressCalls.Add(1)
		_, _ = w.Write([]byte(`[{"id":1,"book":2,"book_slug":"cam-18","completed_units":3,"last_score_pct":"75.00","completion_pct":37.5}]`))
	})
	mux.HandleFunc("/progress/analytics/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_listen_time":3600,"avg_score":71.25,"books_started":1,"recent_sessions":[],"book_progress":[]}`))
	})
	mux.HandleFunc("/progress/sessions/units/8/tick/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 30, body["duration_sec"])
		assert.Equal(t, false, body["completed"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":77,"unit":8,"duration_sec":30,"completed":false}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	api := progress.New(client.New(client.Config{BaseURL: srv.URL}, tokens{}), query.New(query.NewMemory(), 0))
	ctx := context.Background()

	p, err := api.ForBook(ctx, "cam-18")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 75.0, p.LastScorePct.Float())
	missing, err := api.ForBook(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.EqualValues(t, 1, progressCalls.Load())

	an, err := api.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3600, an.TotalListenTime)

	_, err = api.Tick(ctx, 8, 0, false)
	require.Error(t, err)
	sess, err := api.Tick(ctx, 8, 30, false)
	require.NoError(t, err)
	assert.EqualValues(t, 77, sess.ID)

	_, err = api.Progress(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, progressCalls.Load(), "tick invalidates progress")
}

// brokenCache serves reads but cannot invalidate.
type brokenCache struct{ *query.Memory }

func (brokenCache) DeletePrefix(context.Context, string) error { return errors.New("cache down") }

func TestTickedSecondsAreNotResentWhenInvalidationFails(t *testing.T) {
	var ticks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/progress/sessions/units/9/tick/", func(w http.ResponseWriter, r *http.Request) {
		ticks.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"unit":9,"duration_sec":2}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	api := progress.New(client.New(client.Config{BaseURL: srv.URL}, tokens{}), query.New(brokenCache{query.NewMemory()}, 0))

	ctx := context.Background()
	tr := progress.NewTracker(9, progress.NewPositionStore(storage.NewMemStore()), api, time.Second)
	cur := &progress.Cursor{}
	for _, p := range []float64{1, 2, 3} {
		cur.Set(p)
		require.NoError(t, tr.Sample(ctx, cur))
	}
	require.NoError(t, tr.Flush(ctx, false))
	require.NoError(t, tr.Flush(ctx, false))
	assert.EqualValues(t, 1, ticks.Load())
	assert.Equal(t, 0.0, tr.Listened())
}
