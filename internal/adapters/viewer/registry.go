package viewer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type entry struct {
	conn   *Conn
	cancel context.CancelFunc
}

// Registry tracks connected viewers by client token. A token reconnecting
// replaces its previous socket.
type Registry struct {
	mu      sync.RWMutex
	viewers map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{viewers: make(map[string]*entry)}
}

// Bind registers conn and returns the socket it replaced, if any.
func (r *Registry) Bind(token string, conn *Conn, cancel context.CancelFunc) (replaced *Conn, replacedCancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.viewers[token]; ok {
		replaced, replacedCancel = old.conn, old.cancel
	}
	r.viewers[token] = &entry{conn: conn, cancel: cancel}
	log.Info().Str("module", "viewer.registry").Str("token", token).Msg("bound viewer")
	return replaced, replacedCancel
}

// Unbind removes token only while it still maps to conn.
func (r *Registry) Unbind(token string, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.viewers[token]
	if !ok || e.conn != conn {
		return false
	}
	delete(r.viewers, token)
	log.Info().Str("module", "viewer.registry").Str("token", token).Msg("unbound viewer")
	return true
}

// Cancel stops the pumps of token's viewer.
func (r *Registry) Cancel(token string) bool {
	r.mu.RLock()
	e, ok := r.viewers[token]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	log.Info().Str("module", "viewer.registry").Str("token", token).Msg("canceled viewer")
	return true
}

type regSnap struct {
	Token string
	Conn  *Conn
}

func (r *Registry) Snapshot() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.viewers))
	for token, e := range r.viewers {
		out = append(out, regSnap{Token: token, Conn: e.conn})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}
