package progress

import (
	"context"
	"log"
	"math"
	"sync"
	"time"
)

// Source reports the current playback position in seconds.
type Source interface {
	Position() float64
}

// Cursor is a Source fed from outside, e.g. by a player posting updates.
type Cursor struct {
	mu  sync.Mutex
	pos float64
}

func (c *Cursor) Set(pos float64) {
	c.mu.Lock()
	c.pos = pos
	c.mu.Unlock()
}

func (c *Cursor) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Ticker records listened time on the backend; *API implements it.
type Ticker interface {
	Tick(ctx context.Context, unitID int64, seconds int, completed bool) (*ListeningSession, error)
}

// Tracker samples a Source on an interval, persists positions above zero and
// accumulates the seconds played between samples. Jumps larger than two
// intervals are seeks and do not count as listening.
type Tracker struct {
	unitID   int64
	store    *PositionStore
	ticks    Ticker
	interval time.Duration

	mu       sync.Mutex
	last     float64
	listened float64
}

func NewTracker(unitID int64, store *PositionStore, ticks Ticker, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Tracker{unitID: unitID, store: store, ticks: ticks, interval: interval, last: -1}
}

// Restore seeds the tracker with the saved position and returns it.
func (t *Tracker) Restore(ctx context.Context) (float64, error) {
	pos, _, err := t.store.Get(ctx, t.unitID)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	t.last = pos
	t.mu.Unlock()
	return pos, nil
}

// Sample takes one reading from src.
func (t *Tracker) Sample(ctx context.Context, src Source) error {
	pos := src.Position()
	t.mu.Lock()
	if t.last >= 0 {
		d := pos - t.last
		if d > 0 && d <= 2*t.interval.Seconds() {
			t.listened += d
		}
	}
	t.last = pos
	t.mu.Unlock()
	return t.store.Save(ctx, t.unitID, pos)
}

// Run samples src until ctx is done, then flushes the listened time.
func (t *Tracker) Run(ctx context.Context, src Source) error {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return t.Flush(context.WithoutCancel(ctx), false)
		case <-tk.C:
			if err := t.Sample(ctx, src); err != nil {
				log.Printf("progress: unit %d: %v", t.unitID, err)
			}
		}
	}
}

// Listened returns the seconds accumulated since the last flush.
func (t *Tracker) Listened() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listened
}

// Flush sends whole listened seconds as one tick. A completed flush always
// sends, with at least one second.
func (t *Tracker) Flush(ctx context.Context, completed bool) error {
	if t.ticks == nil {
		return nil
	}
	t.mu.Lock()
	secs := int(math.Floor(t.listened))
	if secs < 1 && !completed {
		t.mu.Unlock()
		return nil
	}
	t.listened -= float64(secs)
	t.mu.Unlock()
	send := secs
	if send < 1 {
		send = 1
	}
	if _, err := t.ticks.Tick(ctx, t.unitID, send, completed); err != nil {
		t.mu.Lock()
		t.listened += float64(secs)
		t.mu.Unlock()
		return err
	}
	return nil
}
