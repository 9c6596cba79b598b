package client

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// ErrSessionExpired means the refresh token could not be exchanged and the
// session has been cleared; the user has to sign in again.
var ErrSessionExpired = errors.New("session expired, sign in again")

// APIError is a non-2xx response that was not handled by the refresh path.
type APIError struct {
	Status int
	Detail string
	// Fields holds per-field validation messages from the backend.
	Fields map[string][]string
	Body   []byte
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("api: %d %s", e.Status, e.Detail)
	case len(e.Fields) > 0:
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
		}
		return fmt.Sprintf("api: %d %s", e.Status, strings.Join(parts, "; "))
	default:
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return e
	}
	for k, v := range m {
		switch k {
		case "detail", "message":
			if s, ok := v.(string); ok && e.Detail == "" {
				e.Detail = s
			}
			continue
		}
		if e.Fields == nil {
			e.Fields = map[string][]string{}
		}
		switch x := v.(type) {
		case string:
			e.Fields[k] = append(e.Fields[k], x)
		case []any:
			for _, it := range x {
				e.Fields[k] = append(e.Fields[k], fmt.Sprint(it))
			}
		default:
			e.Fields[k] = append(e.Fields[k], fmt.Sprint(x))
		}
	}
	return e
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }
