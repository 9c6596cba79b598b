package quiz

import (
	"time"

	"github.com/ieltslisten/learner/internal/client"
)

const (
	TypeSingle = "single"
	TypeMulti  = "multi"
	TypeText   = "text"
)

type Choice struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

type Question struct {
	ID      int64    `json:"id"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Order   int      `json:"order"`
	Choices []Choice `json:"choices"`
}

func (q *Question) hasChoice(id int64) bool {
	for _, c := range q.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Answer holds exactly one of SelectedChoiceID and TextAnswer; the other is
// encoded as null.
type Answer struct {
	QuestionID       int64   `json:"question_id"`
	SelectedChoiceID *int64  `json:"selected_choice_id"`
	TextAnswer       *string `json:"text_answer"`
}

type Submission struct {
	Answers []Answer `json:"answers"`
}

// AnswerResult is the per-question feedback shown after submission.
type AnswerResult struct {
	Question         int64   `json:"question"`
	QuestionText     string  `json:"question_text"`
	SelectedChoices  []int64 `json:"selected_choices"`
	IsCorrect        bool    `json:"is_correct"`
	CorrectChoiceIDs []int64 `json:"correct_choice_ids"`
	Explanation      string  `json:"explanation,omitempty"`
}

type QuizResult struct {
	AttemptID      int64          `json:"id,omitempty"`
	ScorePct       client.Number  `json:"score_pct"`
	CorrectCount   int            `json:"correct_count"`
	TotalQuestions int            `json:"total_questions"`
	ScoreRaw       int            `json:"score_raw,omitempty"`
	IsPassed       bool           `json:"is_passed"`
	Answers        []AnswerResult `json:"answers,omitempty"`
}

// normalize fills the display fields the backend may leave out.
func (r *QuizResult) normalize(total int) {
	if r.CorrectCount == 0 && r.ScoreRaw > 0 {
		r.CorrectCount = r.ScoreRaw
	}
	if r.TotalQuestions == 0 {
		r.TotalQuestions = total
	}
}

type Attempt struct {
	ID          int64          `json:"id"`
	Unit        int64          `json:"unit"`
	UnitTitle   string         `json:"unit_title"`
	StartedAt   time.Time      `json:"started_at"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	ScoreRaw    int            `json:"score_raw"`
	ScorePct    client.Number  `json:"score_pct"`
	IsSubmitted bool           `json:"is_submitted"`
	IsPassed    bool           `json:"is_passed"`
	Answers     []AnswerResult `json:"answers,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
