// Package identity tracks who is acting on the box.
//
// A Gate republishes the latest principal reported by the external identity
// provider. It performs no validation: a nil principal is the normal guest
// state, and guest contributions are communally owned.
package identity

import (
	"context"
	"sync"
)

// Principal is an authenticated participant.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

// Source reports the current principal, or nil for a guest.
type Source interface {
	Current() *Principal
}

// Gate holds the most recently observed principal.
// It is safe for concurrent use.
type Gate struct {
	mu      sync.RWMutex
	current *Principal
}

// NewGate returns a gate in the guest state.
func NewGate() *Gate {
	return &Gate{}
}

// Current returns a copy of the current principal, or nil when signed out.
func (g *Gate) Current() *Principal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return nil
	}
	p := *g.current
	return &p
}

// Observe records a session change. A nil principal, or one without an ID,
// means signed out.
func (g *Gate) Observe(p *Principal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p == nil || p.ID == "" {
		g.current = nil
		return
	}
	cp := *p
	g.current = &cp
}

// SignOut returns the gate to the guest state.
func (g *Gate) SignOut() {
	g.Observe(nil)
}

// Follow observes every value from sessions until the channel is closed or
// ctx is done. It blocks; run it in its own goroutine.
func (g *Gate) Follow(ctx context.Context, sessions <-chan *Principal) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-sessions:
			if !ok {
				return
			}
			g.Observe(p)
		}
	}
}

// Static is a Source fixed to one principal, used for request-scoped identity.
type Static struct {
	p *Principal
}

// NewStatic returns a source that always reports p. A nil p is a guest.
func NewStatic(p *Principal) Static {
	return Static{p: p}
}

// Current implements Source.
func (s Static) Current() *Principal {
	return s.p
}

// Guest is the Source of an unauthenticated caller.
var Guest Source = Static{}
