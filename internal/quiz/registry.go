package quiz

import (
	"context"
	"sync"
)

// Registry keeps one controller per unit so answers survive between daemon
// requests.
type Registry struct {
	api *API

	mu    sync.Mutex
	units map[int64]*Controller
}

func NewRegistry(api *API) *Registry {
	return &Registry{api: api, units: map[int64]*Controller{}}
}

// Open returns the unit's controller, loading its questions the first time.
func (r *Registry) Open(ctx context.Context, unitID int64) (*Controller, error) {
	r.mu.Lock()
	c, ok := r.units[unitID]
	r.mu.Unlock()
	if ok {
		return c, nil
	}
	qs, err := r.api.Questions(ctx, unitID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.units[unitID]; ok {
		return c, nil
	}
	c = NewController(unitID, qs, r.api)
	r.units[unitID] = c
	return c, nil
}

// Lookup returns the controller if the unit was opened.
func (r *Registry) Lookup(unitID int64) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.units[unitID]
	return c, ok
}

// Forget drops every controller, e.g. when the session is cleared.
func (r *Registry) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = map[int64]*Controller{}
}
