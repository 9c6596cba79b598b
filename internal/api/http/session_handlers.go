package http

import (
	"net/http"
	"time"

	"github.com/ieltslisten/learner/internal/auth"
	"github.com/ieltslisten/learner/internal/prefs"
	"github.com/ieltslisten/learner/internal/session"
)

type sessionView struct {
	Authenticated  bool              `json:"authenticated"`
	User           *session.User     `json:"user,omitempty"`
	AccessExpiresS *int              `json:"access_expires_in,omitempty"`
	Preferences    prefs.Preferences `json:"preferences"`
}

// GET /api/session
func SessionHandler(sess *session.Store, p *prefs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := sessionView{
			Authenticated: sess.IsAuthenticated(),
			User:          sess.User(),
			Preferences:   p.Get(),
		}
		if d, ok := sess.AccessExpiresIn(time.Now()); ok {
			secs := int(d.Seconds())
			v.AccessExpiresS = &secs
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /api/auth/login
func LoginHandler(api *auth.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f auth.LoginForm
		if err := decode(r, &f); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := api.Login(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

// POST /api/auth/register
func RegisterHandler(api *auth.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f auth.RegisterForm
		if err := decode(r, &f); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := api.Register(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": u})
	}
}

// POST /api/auth/logout
func LogoutHandler(api *auth.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := api.Logout(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"redirect": signInPath})
	}
}

// PUT /api/preferences
func PreferencesHandler(p *prefs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prefs.Preferences
		if err := decode(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Language != "" {
			if err := p.SetLanguage(r.Context(), req.Language); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.Theme != "" {
			if err := p.SetTheme(r.Context(), req.Theme); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		writeJSON(w, http.StatusOK, p.Get())
	}
}
