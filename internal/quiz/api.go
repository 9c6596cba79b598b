package quiz

import (
	"context"
	"log"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/catalog"
	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/journal"
	"github.com/ieltslisten/learner/internal/progress"
	"github.com/ieltslisten/learner/internal/query"
)

// Cache key prefixes invalidated by Submit.
const (
	KeyAttempts = "attempts"
	KeyBest     = "best:"
)

type API struct {
	c       *client.Client
	cache   *query.Cache
	journal journal.Recorder
}

// New builds the quiz API; rec may be nil.
func New(c *client.Client, cache *query.Cache, rec journal.Recorder) *API {
	return &API{c: c, cache: cache, journal: rec}
}

func unitPath(unitID int64, tail string) string {
	return "/quiz/units/" + strconv.FormatInt(unitID, 10) + "/" + tail
}

// GET /quiz/units/{id}/questions/
func (a *API) Questions(ctx context.Context, unitID int64) ([]Question, error) {
	return query.Fetch(ctx, a.cache, query.Key("questions", unitID, nil), func(ctx context.Context) ([]Question, error) {
		var out client.List[Question]
		if err := a.c.Get(ctx, unitPath(unitID, "questions/"), nil, &out); err != nil {
			return nil, errors.Wrapf(err, "questions for unit %d", unitID)
		}
		return out.Results, nil
	})
}

// Submit posts the answers and invalidates everything that shows a score.
// POST /quiz/units/{id}/submit/
func (a *API) Submit(ctx context.Context, unitID int64, s Submission) (*QuizResult, error) {
	var res QuizResult
	if err := a.c.Post(ctx, unitPath(unitID, "submit/"), s, &res); err != nil {
		return nil, errors.Wrapf(err, "submit quiz for unit %d", unitID)
	}
	res.normalize(0)

	// The attempt is stored on the backend from here on; bookkeeping failures
	// are logged so the caller never submits it twice.
	unit := strconv.FormatInt(unitID, 10)
	if err := a.cache.Invalidate(ctx,
		catalog.KeyUnit+unit, catalog.KeyBook, catalog.KeyBookUnits,
		KeyAttempts, KeyBest+unit,
		progress.KeyProgress, progress.KeyAnalytics,
	); err != nil {
		log.Printf("quiz: invalidate after submit of unit %d: %v", unitID, err)
	}
	if a.journal != nil {
		if err := a.journal.Append(ctx, journal.TypeQuizSubmitted, unit, res); err != nil {
			log.Printf("quiz: journal submit of unit %d: %v", unitID, err)
		}
	}
	return &res, nil
}

// Attempts lists the user's attempts, newest first. unitID 0 keeps every
// unit; otherwise the list is narrowed client side.
// GET /quiz/attempts/
func (a *API) Attempts(ctx context.Context, unitID int64) ([]Attempt, error) {
	all, err := query.Fetch(ctx, a.cache, KeyAttempts, func(ctx context.Context) ([]Attempt, error) {
		var out client.List[Attempt]
		if err := a.c.Get(ctx, "/quiz/attempts/", nil, &out); err != nil {
			return nil, errors.Wrap(err, "list attempts")
		}
		return out.Results, nil
	})
	if err != nil || unitID == 0 {
		return all, err
	}
	var mine []Attempt
	for _, at := range all {
		if at.Unit == unitID {
			mine = append(mine, at)
		}
	}
	return mine, nil
}

// GET /quiz/attempts/{id}/
func (a *API) Attempt(ctx context.Context, id int64) (*Attempt, error) {
	return query.Fetch(ctx, a.cache, query.Key("attempt", id, nil), func(ctx context.Context) (*Attempt, error) {
		var out Attempt
		if err := a.c.Get(ctx, "/quiz/attempts/"+strconv.FormatInt(id, 10)+"/", nil, &out); err != nil {
			return nil, errors.Wrapf(err, "get attempt %d", id)
		}
		return &out, nil
	})
}

// Best returns the highest scoring submitted attempt, or nil when the unit
// has none.
// GET /quiz/attempts/units/{id}/best/
func (a *API) Best(ctx context.Context, unitID int64) (*Attempt, error) {
	return query.Fetch(ctx, a.cache, query.Key("best", unitID, nil), func(ctx context.Context) (*Attempt, error) {
		var out Attempt
		err := a.c.Get(ctx, "/quiz/attempts/units/"+strconv.FormatInt(unitID, 10)+"/best/", nil, &out)
		if client.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "best attempt for unit %d", unitID)
		}
		return &out, nil
	})
}

// Stats aggregates the unit's attempt history for display.
func (a *API) Stats(ctx context.Context, unitID int64) (Stats, error) {
	attempts, err := a.Attempts(ctx, unitID)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(attempts), nil
}
