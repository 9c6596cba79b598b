package quiz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/query"
	"github.com/ieltslisten/learner/internal/quiz"
)

type tokens struct{}

func (tokens) AccessToken() string { return "tok" }
func (tokens) RefreshToken() string { return "ref" }
func (tokens) SetTokens(context.Context, string, string) error { return nil }
func (tokens) Clear(context.Context) error { return nil }

type recorder struct {
	events []string
	err    error
}

func (r *recorder) Append(_ context.Context, typ, key string, _ any) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, typ+":"+key)
	return nil
}

type quizBackend struct {
	attemptCalls atomic.Int32
	submitCalls  atomic.Int32
	submitted    atomic.Bool
}

func (b *quizBackend) mux(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quiz/units/5/questions/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":101,"type":"single","text":"Where?","order":1,"choices":[{"id":7,"text":"Park"},{"id":9,"text":"Library"}]},
			{"id":102,"type":"single","text":"When?","order":2,"choices":[{"id":11,"text":"Mon"}]}]`))
	})
	mux.HandleFunc("/quiz/units/5/submit/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string][]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body["answers"], 1)
		b.submitCalls.Add(1)
		b.submitted.Store(true)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":31,"score_raw":1,"score_pct":"50.00","is_passed":false,
			"answers":[{"question":101,"selected_choices":[9],"is_correct":true,"correct_choice_ids":[9]}]}`))
	})
	mux.HandleFunc("/quiz/attempts/", func(w http.ResponseWriter, r *http.Request) {
		b.attemptCalls.Add(1)
		if b.submitted.Load() {
			_, _ = w.Write([]byte(`{"count":3,"next":null,"results":[{"id":31,"unit":5,"score_pct":"50.00"},{"id":30,"unit":6,"score_pct":"90.00"},{"id":29,"unit":5,"score_pct":"85.00"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"next":null,"results":[{"id":29,"unit":5,"score_pct":"85.00"}]}`))
	})
	mux.HandleFunc("/quiz/attempts/units/5/best/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":29,"unit":5,"score_pct":"85.00","is_passed":true}`))
	})
	mux.HandleFunc("/quiz/attempts/units/6/best/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"No attempts found"}`))
	})
	return mux
}

func newAPI(t *testing.T, b *quizBackend, rec *recorder) *quiz.API {
	srv := httptest.NewServer(b.mux(t))
	t.Cleanup(srv.Close)
	c := client.New(client.Config{BaseURL: srv.URL}, tokens{})
	if rec == nil {
		return quiz.New(c, query.New(query.NewMemory(), 0), nil)
	}
	return quiz.New(c, query.New(query.NewMemory(), 0), rec)
}

func TestRegistrySubmitThroughAPI(t *testing.T) {
	ctx := context.Background()
	b := &quizBackend{}
	rec := &recorder{}
	api := newAPI(t, b, rec)

	before, err := api.Attempts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, before, 1)

	reg := quiz.NewRegistry(api)
	c, err := reg.Open(ctx, 5)
	require.NoError(t, err)
	again, err := reg.Open(ctx, 5)
	require.NoError(t, err)
	assert.Same(t, c, again)

	require.NoError(t, c.SelectChoice(101, 9))
	res, err := c.Submit(ctx, func(answered, total int) bool { return true })
	require.NoError(t, err)
	assert.EqualValues(t, 31, res.AttemptID)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 2, res.TotalQuestions)
	assert.Equal(t, 50.0, res.ScorePct.Float())
	assert.Equal(t, []string{"QuizSubmitted:5"}, rec.events)

	after, err := api.Attempts(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, after, 2, "attempt list refetched after submit")
	assert.EqualValues(t, 2, b.attemptCalls.Load())

	reg.Forget()
	_, ok := reg.Lookup(5)
	assert.False(t, ok)
}

func TestAcceptedSubmitCompletesWhenJournalFails(t *testing.T) {
	ctx := context.Background()
	b := &quizBackend{}
	api := newAPI(t, b, &recorder{err: errors.New("disk full")})

	c, err := quiz.NewRegistry(api).Open(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, c.SelectChoice(101, 9))
	res, err := c.Submit(ctx, func(int, int) bool { return true })
	require.NoError(t, err)
	assert.EqualValues(t, 31, res.AttemptID)
	assert.Equal(t, quiz.Completed, c.State())

	_, err = c.Submit(ctx, func(int, int) bool { return true })
	require.ErrorIs(t, err, quiz.ErrNotCollecting)
	assert.EqualValues(t, 1, b.submitCalls.Load())
}

func TestBestAttempt(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t, &quizBackend{}, nil)

	best, err := api.Best(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.True(t, best.IsPassed)

	none, err := api.Best(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStatsFromAttempts(t *testing.T) {
	ctx := context.Background()
	b := &quizBackend{}
	b.submitted.Store(true)
	api := newAPI(t, b, nil)

	st, err := api.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 85.0, st.Best)
	assert.Equal(t, 67.5, st.Average)
	assert.EqualValues(t, 31, st.Latest.ID)
}
