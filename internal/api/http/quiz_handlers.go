package http

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/progress"
	"github.com/ieltslisten/learner/internal/quiz"
)

// GET /api/units/{unitID}/quiz
func QuizHandler(reg *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		c, err := reg.Open(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c.View())
	}
}

// PUT /api/units/{unitID}/quiz/answers/{questionID}
// Body is {"choice_id": 9} or {"text": "..."}.
func AnswerHandler(reg *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		questionID, ok := int64Param(r, "questionID")
		if !ok {
			http.Error(w, "invalid question id", http.StatusBadRequest)
			return
		}
		var req struct {
			ChoiceID *int64  `json:"choice_id"`
			Text     *string `json:"text"`
		}
		if err := decode(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if (req.ChoiceID == nil) == (req.Text == nil) {
			http.Error(w, "exactly one of choice_id and text required", http.StatusBadRequest)
			return
		}
		c, err := reg.Open(r.Context(), unitID)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.ChoiceID != nil {
			err = c.SelectChoice(questionID, *req.ChoiceID)
		} else {
			err = c.AnswerText(questionID, *req.Text)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c.View())
	}
}

// POST /api/units/{unitID}/quiz/submit
// A partial submission needs {"confirm": true}.
func SubmitHandler(reg *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		var req struct {
			Confirm bool `json:"confirm"`
		}
		if r.ContentLength != 0 {
			if err := decode(r, &req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		c, ok := reg.Lookup(unitID)
		if !ok {
			http.Error(w, "quiz not opened", http.StatusNotFound)
			return
		}
		_, err := c.Submit(r.Context(), func(answered, total int) bool { return req.Confirm })
		if err != nil {
			answered, total := c.Progress()
			if errors.Is(err, quiz.ErrSubmitCancelled) {
				writeJSON(w, http.StatusConflict, map[string]any{
					"detail": "confirmation required", "answered": answered, "total": total,
				})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c.View())
	}
}

// POST /api/units/{unitID}/quiz/reset
// Also forgets the saved audio position.
func ResetHandler(reg *quiz.Registry, listening *progress.Listening) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		if err := listening.Reset(r.Context(), unitID); err != nil {
			writeError(w, err)
			return
		}
		c, ok := reg.Lookup(unitID)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		c.Reset()
		writeJSON(w, http.StatusOK, c.View())
	}
}
