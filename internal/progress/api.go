package progress

import (
	"context"
	"log"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/query"
)

// Cache key prefixes; quiz submissions and ticks invalidate both.
const (
	KeyProgress  = "progress"
	KeyAnalytics = "analytics"
)

type API struct {
	c     *client.Client
	cache *query.Cache
}

func New(c *client.Client, cache *query.Cache) *API {
	return &API{c: c, cache: cache}
}

// GET /progress/
func (a *API) Progress(ctx context.Context) ([]UserProgress, error) {
	return query.Fetch(ctx, a.cache, KeyProgress, func(ctx context.Context) ([]UserProgress, error) {
		var out client.List[UserProgress]
		if err := a.c.Get(ctx, "/progress/", nil, &out); err != nil {
			return nil, errors.Wrap(err, "list progress")
		}
		return out.Results, nil
	})
}

// ForBook picks the progress row of one book, nil when it was never started.
func (a *API) ForBook(ctx context.Context, slug string) (*UserProgress, error) {
	all, err := a.Progress(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].BookSlug == slug {
			return &all[i], nil
		}
	}
	return nil, nil
}

// GET /progress/analytics/
func (a *API) Analytics(ctx context.Context) (*Analytics, error) {
	return query.Fetch(ctx, a.cache, KeyAnalytics, func(ctx context.Context) (*Analytics, error) {
		var out Analytics
		if err := a.c.Get(ctx, "/progress/analytics/", nil, &out); err != nil {
			return nil, errors.Wrap(err, "get analytics")
		}
		return &out, nil
	})
}

// Tick records listened seconds for a unit. Durations under one second are
// not sent.
// POST /progress/sessions/units/{id}/tick/
func (a *API) Tick(ctx context.Context, unitID int64, seconds int, completed bool) (*ListeningSession, error) {
	if seconds < 1 {
		return nil, errors.Errorf("tick duration must be at least 1s, got %d", seconds)
	}
	var out ListeningSession
	err := a.c.Post(ctx, "/progress/sessions/units/"+strconv.FormatInt(unitID, 10)+"/tick/",
		map[string]any{"duration_sec": seconds, "completed": completed}, &out)
	if err != nil {
		return nil, errors.Wrapf(err, "tick unit %d", unitID)
	}
	// the seconds are counted once the backend accepted them
	if err := a.cache.Invalidate(ctx, KeyProgress, KeyAnalytics); err != nil {
		log.Printf("progress: invalidate after tick of unit %d: %v", unitID, err)
	}
	return &out, nil
}
