package http

import (
	"net/http"

	"github.com/ieltslisten/learner/internal/progress"
)

// GET /api/units/{unitID}/position
func GetPositionHandler(ps *progress.PositionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		pos, saved, err := ps.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"position": pos, "saved": saved})
	}
}

// PUT /api/units/{unitID}/position
// The player reports {"position": 73.2}; {"completed": true} ends the
// listening session for the unit.
func PutPositionHandler(l *progress.Listening) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		var req struct {
			Position  float64 `json:"position"`
			Completed bool    `json:"completed"`
		}
		if err := decode(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Position < 0 {
			http.Error(w, "position must not be negative", http.StatusBadRequest)
			return
		}
		if err := l.Report(r.Context(), id, req.Position); err != nil {
			writeError(w, err)
			return
		}
		if req.Completed {
			if err := l.Stop(r.Context(), id, true); err != nil {
				writeError(w, err)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/progress
func ProgressHandler(api *progress.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := api.Progress(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		an, err := api.Analytics(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"progress": rows, "analytics": an})
	}
}
