package client

import (
	"bytes"

	"github.com/goccy/go-json"
)

// List decodes either a bare JSON array or a paginated
// {"count":..,"results":[..]} envelope; the backend uses both.
type List[T any] struct {
	Count   int    `json:"count"`
	Next    string `json:"next,omitempty"`
	Results []T    `json:"results"`
}

func (l *List[T]) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		var items []T
		if err := json.Unmarshal(t, &items); err != nil {
			return err
		}
		l.Results, l.Count, l.Next = items, len(items), ""
		return nil
	}
	var e struct {
		Count   int    `json:"count"`
		Next    string `json:"next"`
		Results []T    `json:"results"`
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return err
	}
	l.Count, l.Next, l.Results = e.Count, e.Next, e.Results
	return nil
}
