package quiz

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotCollecting   = errors.New("quiz is not accepting answers")
	ErrNoAnswers       = errors.New("no answers to submit")
	ErrSubmitCancelled = errors.New("submission cancelled")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrUnknownChoice   = errors.New("choice does not belong to question")
	ErrWrongAnswerKind = errors.New("answer kind does not match question type")
)

type State int

const (
	Collecting State = iota
	Submitting
	Completed
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Submitter posts a finished submission for a unit.
type Submitter interface {
	Submit(ctx context.Context, unitID int64, s Submission) (*QuizResult, error)
}

// ConfirmFunc is asked whether a partial submission should go ahead.
type ConfirmFunc func(answered, total int) bool

// Controller owns the answers of one quiz session for one unit.
type Controller struct {
	unitID    int64
	submitter Submitter

	mu        sync.Mutex
	questions []Question
	byID      map[int64]*Question
	answers   map[int64]Answer
	state     State
	result    *QuizResult
	lastErr   error
	gen       uint64 // bumped by Reset so a late response is dropped
}

func NewController(unitID int64, questions []Question, submitter Submitter) *Controller {
	c := &Controller{
		unitID:    unitID,
		submitter: submitter,
		questions: append([]Question(nil), questions...),
		byID:      make(map[int64]*Question, len(questions)),
		answers:   map[int64]Answer{},
	}
	sort.SliceStable(c.questions, func(i, j int) bool { return c.questions[i].Order < c.questions[j].Order })
	for i := range c.questions {
		c.byID[c.questions[i].ID] = &c.questions[i]
	}
	return c
}

func (c *Controller) UnitID() int64 { return c.unitID }

// SelectChoice records choiceID as the answer to questionID, replacing any
// earlier answer to it.
func (c *Controller) SelectChoice(questionID, choiceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Collecting {
		return ErrNotCollecting
	}
	if q, ok := c.byID[questionID]; ok {
		if q.Type == TypeText {
			return errors.Wrapf(ErrWrongAnswerKind, "question %d", questionID)
		}
		if len(q.Choices) > 0 && !q.hasChoice(choiceID) {
			return errors.Wrapf(ErrUnknownChoice, "question %d choice %d", questionID, choiceID)
		}
	} else if len(c.byID) > 0 {
		return errors.Wrapf(ErrUnknownQuestion, "question %d", questionID)
	}
	id := choiceID
	c.answers[questionID] = Answer{QuestionID: questionID, SelectedChoiceID: &id}
	return nil
}

// AnswerText records a free-text answer, replacing any earlier answer. A
// blank answer withdraws the question's answer.
func (c *Controller) AnswerText(questionID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Collecting {
		return ErrNotCollecting
	}
	if q, ok := c.byID[questionID]; ok {
		if q.Type != TypeText {
			return errors.Wrapf(ErrWrongAnswerKind, "question %d", questionID)
		}
	} else if len(c.byID) > 0 {
		return errors.Wrapf(ErrUnknownQuestion, "question %d", questionID)
	}
	t := tidyAnswer(text)
	if t == "" {
		delete(c.answers, questionID)
		return nil
	}
	c.answers[questionID] = Answer{QuestionID: questionID, TextAnswer: &t}
	return nil
}

func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Collecting && len(c.answers) > 0
}

// Progress reports answered and total question counts.
func (c *Controller) Progress() (answered, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers), len(c.questions)
}

// Payload projects the current answers into a submission, ordered by
// question id.
func (c *Controller) Payload() Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloadLocked()
}

func (c *Controller) payloadLocked() Submission {
	s := Submission{Answers: make([]Answer, 0, len(c.answers))}
	for _, a := range c.answers {
		s.Answers = append(s.Answers, a)
	}
	sort.Slice(s.Answers, func(i, j int) bool { return s.Answers[i].QuestionID < s.Answers[j].QuestionID })
	return s
}

// Submit sends the collected answers. With fewer answers than questions,
// confirm decides whether to go ahead; a nil confirm refuses. On failure the
// controller goes back to collecting with its answers intact.
func (c *Controller) Submit(ctx context.Context, confirm ConfirmFunc) (*QuizResult, error) {
	answered, total, err := c.precheck()
	if err != nil {
		return nil, err
	}
	if answered < total && (confirm == nil || !confirm(answered, total)) {
		return nil, ErrSubmitCancelled
	}

	c.mu.Lock()
	if c.state != Collecting {
		c.mu.Unlock()
		return nil, ErrNotCollecting
	}
	if len(c.answers) == 0 {
		c.mu.Unlock()
		return nil, ErrNoAnswers
	}
	payload := c.payloadLocked()
	gen := c.gen
	c.state = Submitting
	c.lastErr = nil
	c.mu.Unlock()

	res, err := c.submitter.Submit(ctx, c.unitID, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil, ErrSubmitCancelled
	}
	if err != nil {
		c.state = Collecting
		c.lastErr = err
		return nil, err
	}
	res.normalize(len(c.questions))
	c.state = Completed
	c.result = res
	return res, nil
}

func (c *Controller) precheck() (answered, total int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Collecting {
		return 0, 0, ErrNotCollecting
	}
	if len(c.answers) == 0 {
		return 0, 0, ErrNoAnswers
	}
	return len(c.answers), len(c.questions), nil
}

// Reset drops every answer and the result and returns to collecting.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = map[int64]Answer{}
	c.result = nil
	c.lastErr = nil
	c.state = Collecting
	c.gen++
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Result() *QuizResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// View is a consistent copy of the controller for rendering.
type View struct {
	UnitID    int64       `json:"unit_id"`
	State     State       `json:"state"`
	Answered  int         `json:"answered"`
	Total     int         `json:"total"`
	CanSubmit bool        `json:"can_submit"`
	Questions []Question  `json:"questions"`
	Answers   []Answer    `json:"answers"`
	Result    *QuizResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		UnitID:    c.unitID,
		State:     c.state,
		Answered:  len(c.answers),
		Total:     len(c.questions),
		CanSubmit: c.state == Collecting && len(c.answers) > 0,
		Questions: c.questions,
		Answers:   c.payloadLocked().Answers,
		Result:    c.result,
	}
	if c.lastErr != nil {
		v.Error = c.lastErr.Error()
	}
	return v
}
