package quiz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltslisten/learner/internal/quiz"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	got   []quiz.Submission
	err   error
	res   *quiz.QuizResult
	block chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, _ int64, s quiz.Submission) (*quiz.QuizResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, s)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		r := *f.res
		return &r, nil
	}
	return &quiz.QuizResult{ScorePct: 50, CorrectCount: 1}, nil
}

func questions() []quiz.Question {
	return []quiz.Question{
		{ID: 102, Type: quiz.TypeText, Order: 2},
		{ID: 101, Type: quiz.TypeSingle, Order: 1, Choices: []quiz.Choice{{ID: 7}, {ID: 8}, {ID: 9}}},
	}
}

func always(int, int) bool { return true }

func TestLastSelectionWins(t *testing.T) {
	c := quiz.NewController(1, questions(), &fakeSubmitter{})
	require.NoError(t, c.SelectChoice(101, 7))
	require.NoError(t, c.SelectChoice(101, 9))

	raw, err := json.Marshal(c.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"answers":[{"question_id":101,"selected_choice_id":9,"text_answer":null}]}`, string(raw))
}

func TestPayloadMixesKindsInQuestionOrder(t *testing.T) {
	c := quiz.NewController(1, questions(), &fakeSubmitter{})
	require.NoError(t, c.AnswerText(102, "Tuesday"))
	require.NoError(t, c.SelectChoice(101, 8))

	raw, err := json.Marshal(c.Payload())
	require.NoError(t, err)
	assert.Equal(t,
		`{"answers":[{"question_id":101,"selected_choice_id":8,"text_answer":null},{"question_id":102,"selected_choice_id":null,"text_answer":"Tuesday"}]}`,
		string(raw))
}

func TestSelectionValidation(t *testing.T) {
	c := quiz.NewController(1, questions(), &fakeSubmitter{})
	require.ErrorIs(t, c.SelectChoice(999, 7), quiz.ErrUnknownQuestion)
	require.ErrorIs(t, c.SelectChoice(101, 42), quiz.ErrUnknownChoice)
	require.ErrorIs(t, c.SelectChoice(102, 7), quiz.ErrWrongAnswerKind)
	require.ErrorIs(t, c.AnswerText(101, "x"), quiz.ErrWrongAnswerKind)

	answered, total := c.Progress()
	assert.Equal(t, 0, answered)
	assert.Equal(t, 2, total)
}

func TestZeroAnswersCannotSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	c := quiz.NewController(1, questions(), sub)
	assert.False(t, c.CanSubmit())

	_, err := c.Submit(context.Background(), always)
	require.ErrorIs(t, err, quiz.ErrNoAnswers)
	assert.Empty(t, sub.got)
	assert.Equal(t, quiz.Collecting, c.State())
}

func TestPartialSubmissionNeedsConfirmation(t *testing.T) {
	sub := &fakeSubmitter{}
	c := quiz.NewController(1, questions(), sub)
	require.NoError(t, c.SelectChoice(101, 7))

	var asked [2]int
	_, err := c.Submit(context.Background(), func(answered, total int) bool {
		asked = [2]int{answered, total}
		return false
	})
	require.ErrorIs(t, err, quiz.ErrSubmitCancelled)
	assert.Equal(t, [2]int{1, 2}, asked)
	assert.Equal(t, quiz.Collecting, c.State())

	_, err = c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, quiz.ErrSubmitCancelled)

	res, err := c.Submit(context.Background(), always)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalQuestions, "filled from the question list")
	assert.Equal(t, quiz.Completed, c.State())
	assert.Len(t, sub.got, 1)
}

func TestCompletedIgnoresSelections(t *testing.T) {
	c := quiz.NewController(1, questions(), &fakeSubmitter{})
	require.NoError(t, c.SelectChoice(101, 7))
	require.NoError(t, c.AnswerText(102, "a"))
	_, err := c.Submit(context.Background(), nil)
	require.NoError(t, err)

	require.ErrorIs(t, c.SelectChoice(101, 9), quiz.ErrNotCollecting)
	_, err = c.Submit(context.Background(), always)
	require.ErrorIs(t, err, quiz.ErrNotCollecting)
	assert.Equal(t, int64(7), *c.Payload().Answers[0].SelectedChoiceID)
}

func TestFailedSubmitKeepsAnswers(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("boom")}
	c := quiz.NewController(1, questions(), sub)
	require.NoError(t, c.SelectChoice(101, 7))
	require.NoError(t, c.AnswerText(102, "a"))

	_, err := c.Submit(context.Background(), nil)
	require.EqualError(t, err, "boom")
	assert.Equal(t, quiz.Collecting, c.State())
	assert.Nil(t, c.Result())
	v := c.View()
	assert.Equal(t, "boom", v.Error)
	assert.Equal(t, 2, v.Answered)

	sub.err = nil
	_, err = c.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, sub.got, 2)
	assert.Equal(t, sub.got[0], sub.got[1])
}

func TestResetRestoresInitialState(t *testing.T) {
	qs := questions()
	fresh := quiz.NewController(1, qs, &fakeSubmitter{})
	c := quiz.NewController(1, qs, &fakeSubmitter{})
	require.NoError(t, c.SelectChoice(101, 7))
	require.NoError(t, c.AnswerText(102, "a"))
	_, err := c.Submit(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, c.Result())

	c.Reset()
	assert.Equal(t, fresh.View(), c.View())
	require.NoError(t, c.SelectChoice(101, 8))
}

func TestResetDuringSubmitDropsLateResult(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	c := quiz.NewController(1, questions(), sub)
	require.NoError(t, c.SelectChoice(101, 7))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), always)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == quiz.Submitting }, time.Second, time.Millisecond)
	c.Reset()
	close(sub.block)

	require.ErrorIs(t, <-done, quiz.ErrSubmitCancelled)
	assert.Equal(t, quiz.Collecting, c.State())
	assert.Nil(t, c.Result())
}

func TestBlankTextWithdrawsAnswer(t *testing.T) {
	c := quiz.NewController(1, questions(), &fakeSubmitter{})
	require.NoError(t, c.AnswerText(102, "  North \t  Road "))
	assert.Equal(t, "North Road", *c.Payload().Answers[0].TextAnswer)

	require.NoError(t, c.AnswerText(102, " \n "))
	answered, _ := c.Progress()
	assert.Equal(t, 0, answered)
	assert.False(t, c.CanSubmit())
}
