// internal/session/registry.go
//
// Registry of live per-player controllers, keyed by user ID. Concurrency-safe
// via RWMutex; controllers are created lazily on first use and torn down on
// sign-out (cancelling their pending sync).

package session

import (
	"context"
	"sync"
	"time"

	"github.com/worldepixel/worlde-server/internal/game"
	"github.com/worldepixel/worlde-server/internal/profile"
)

// Registry holds the active controllers.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller

	sel      game.Selector
	debounce time.Duration
}

// NewRegistry builds an empty registry; sel and debounce are shared by all
// controllers it creates.
func NewRegistry(sel game.Selector, debounce time.Duration) *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
		sel:         sel,
		debounce:    debounce,
	}
}

// Get returns the live controller for userID, or nil.
func (r *Registry) Get(userID string) *Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controllers[userID]
}

// GetOrCreate returns the live controller for userID, building one against
// the given store when absent.
func (r *Registry) GetOrCreate(userID string, guest bool, store profile.Store) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[userID]; ok {
		return c
	}
	c := NewController(userID, guest, r.sel, store, r.debounce)
	r.controllers[userID] = c
	return c
}

// Remove tears down and forgets the controller for userID, if any.
func (r *Registry) Remove(ctx context.Context, userID string) {
	r.mu.Lock()
	c, ok := r.controllers[userID]
	delete(r.controllers, userID)
	r.mu.Unlock()
	if ok {
		c.Close(ctx)
	}
}

// Len reports the number of live controllers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}
