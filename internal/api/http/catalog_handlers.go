package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ieltslisten/learner/internal/catalog"
)

func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// GET /api/books?search=&ordering=&page=
func BooksHandler(api *catalog.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := catalog.BookFilter{Search: q.Get("search"), Ordering: q.Get("ordering")}
		if p := q.Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			f.Page = n
		}
		books, err := api.Books(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	}
}

// GET /api/books/{slug}
func BookHandler(api *catalog.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := api.Book(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// GET /api/books/{slug}/units
func BookUnitsHandler(api *catalog.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		units, err := api.BookUnits(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, units)
	}
}

// GET /api/units/{unitID}
func UnitHandler(api *catalog.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		u, err := api.Unit(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// POST /api/units/{unitID}/assets/{type}
func AssetURLHandler(api *catalog.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "unitID")
		if !ok {
			http.Error(w, "invalid unit id", http.StatusBadRequest)
			return
		}
		u, err := api.AssetURL(r.Context(), id, chi.URLParam(r, "type"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
