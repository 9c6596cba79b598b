package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ieltslisten/learner/internal/app"
	"github.com/ieltslisten/learner/internal/session"
)

// NewRouter mounts the companion daemon on top of a wired App.
func NewRouter(a *app.App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(a.Config.PollTimeout + 30*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Get("/api/session", SessionHandler(a.Session, a.Prefs))
	r.Put("/api/preferences", PreferencesHandler(a.Prefs))
	r.Post("/api/auth/login", LoginHandler(a.Auth))
	r.Post("/api/auth/register", RegisterHandler(a.Auth))
	r.Post("/api/auth/logout", LogoutHandler(a.Auth))

	r.Get("/api/books", BooksHandler(a.Catalog))
	r.Get("/api/books/{slug}", BookHandler(a.Catalog))

	// The provider redirect lands here from the browser.
	r.Get("/payment/return", PaymentReturnHandler(a.Payment))

	r.Group(func(pr chi.Router) {
		pr.Use(requireSession(a.Session))

		pr.Get("/api/books/{slug}/units", BookUnitsHandler(a.Catalog))
		pr.Get("/api/units/{unitID}", UnitHandler(a.Catalog))
		pr.Post("/api/units/{unitID}/assets/{type}", AssetURLHandler(a.Catalog))

		pr.Get("/api/units/{unitID}/quiz", QuizHandler(a.Quizzes))
		pr.Put("/api/units/{unitID}/quiz/answers/{questionID}", AnswerHandler(a.Quizzes))
		pr.Post("/api/units/{unitID}/quiz/submit", SubmitHandler(a.Quizzes))
		pr.Post("/api/units/{unitID}/quiz/reset", ResetHandler(a.Quizzes, a.Listening))

		pr.Get("/api/units/{unitID}/position", GetPositionHandler(a.Positions))
		pr.Put("/api/units/{unitID}/position", PutPositionHandler(a.Listening))
		pr.Get("/api/progress", ProgressHandler(a.Progress))

		pr.Get("/api/orders", OrdersHandler(a.Payment))
		pr.Post("/api/orders", CreateOrderHandler(a.Payment))
		pr.Get("/api/orders/{orderID}", OrderHandler(a.Payment))
	})
	return r
}

// requireSession answers like an expired session when nobody is signed in,
// so the UI redirects before any backend call is made.
func requireSession(sess *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sess.IsAuthenticated() {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "not signed in", "redirect": signInPath})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
