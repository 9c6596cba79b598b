package progress

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

type listen struct {
	cursor  *Cursor
	tracker *Tracker
	cancel  context.CancelFunc
	done    chan error
}

// Listening runs one Tracker per unit that is being played, fed by position
// reports from the player.
type Listening struct {
	store    *PositionStore
	ticks    Ticker
	interval time.Duration

	mu     sync.Mutex
	active map[int64]*listen
}

func NewListening(store *PositionStore, ticks Ticker, interval time.Duration) *Listening {
	return &Listening{store: store, ticks: ticks, interval: interval, active: map[int64]*listen{}}
}

// Report records the player's position for unitID, starting a tracker for
// the unit on first use. The position is saved right away as well.
func (l *Listening) Report(ctx context.Context, unitID int64, pos float64) error {
	l.mu.Lock()
	ln, ok := l.active[unitID]
	if !ok {
		tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		ln = &listen{
			cursor:  &Cursor{},
			tracker: NewTracker(unitID, l.store, l.ticks, l.interval),
			cancel:  cancel,
			done:    make(chan error, 1),
		}
		ln.tracker.last = pos
		l.active[unitID] = ln
		go func() { ln.done <- ln.tracker.Run(tctx, ln.cursor) }()
	}
	l.mu.Unlock()
	ln.cursor.Set(pos)
	return l.store.Save(ctx, unitID, pos)
}

// Stop ends tracking of unitID and flushes its listened time. completed marks
// the unit as finished on the backend.
func (l *Listening) Stop(ctx context.Context, unitID int64, completed bool) error {
	l.mu.Lock()
	ln, ok := l.active[unitID]
	delete(l.active, unitID)
	l.mu.Unlock()
	if !ok {
		if completed && l.ticks != nil {
			_, err := l.ticks.Tick(ctx, unitID, 1, true)
			return err
		}
		return nil
	}
	ln.cancel()
	err := <-ln.done
	if completed {
		if ferr := ln.tracker.Flush(ctx, true); ferr != nil {
			err = multierror.Append(err, ferr)
		}
	}
	return err
}

// Reset stops tracking and forgets the saved position.
func (l *Listening) Reset(ctx context.Context, unitID int64) error {
	var result error
	if err := l.Stop(ctx, unitID, false); err != nil {
		result = multierror.Append(result, err)
	}
	if err := l.store.Clear(ctx, unitID); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// Close stops every tracker.
func (l *Listening) Close(ctx context.Context) error {
	l.mu.Lock()
	ids := make([]int64, 0, len(l.active))
	for id := range l.active {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	var result error
	for _, id := range ids {
		if err := l.Stop(ctx, id, false); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
