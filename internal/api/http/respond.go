package http

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/auth"
	"github.com/ieltslisten/learner/internal/catalog"
	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/payment"
	"github.com/ieltslisten/learner/internal/quiz"
)

const signInPath = "/sign-in"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps service errors onto daemon responses. An expired session
// tells the UI where to send the learner.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve  *auth.ValidationError
		ae  *client.APIError
		msg = err.Error()
	)
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "session expired", "redirect": signInPath})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid form", "fields": ve.Fields})
	case errors.Is(err, quiz.ErrNotCollecting), errors.Is(err, quiz.ErrSubmitCancelled):
		writeJSON(w, http.StatusConflict, map[string]string{"detail": msg})
	case errors.Is(err, quiz.ErrNoAnswers), errors.Is(err, quiz.ErrUnknownQuestion),
		errors.Is(err, quiz.ErrUnknownChoice), errors.Is(err, quiz.ErrWrongAnswerKind),
		errors.Is(err, catalog.ErrUnknownAssetType):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": msg})
	case errors.Is(err, payment.ErrStillPending):
		writeJSON(w, http.StatusAccepted, map[string]string{"detail": msg})
	case errors.As(err, &ae):
		writeJSON(w, ae.Status, map[string]any{"detail": ae.Detail, "fields": ae.Fields})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"detail": msg})
	}
}
