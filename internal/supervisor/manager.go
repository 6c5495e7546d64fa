package supervisor

import (
	"context"
	"sync"

	"github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/watch"
)

// Manager is a keyed collection of supervisors for one service kind (one
// Starter type). It routes config updates to the right supervisor,
// spawning one on first sight of a new key (invariant I3).
type Manager[C Keyed, S any] struct {
	ctx     context.Context
	starter Starter[C, S]

	mu   sync.RWMutex
	svs  map[string]*supervisor[C, S]
}

// NewManager spawns a supervisor for each initial config and returns a
// manager ready to accept further updates.
func NewManager[C Keyed, S any](ctx context.Context, starter Starter[C, S], initial []C) *Manager[C, S] {
	m := &Manager[C, S]{
		ctx:     ctx,
		starter: starter,
		svs:     make(map[string]*supervisor[C, S]),
	}
	for _, cfg := range initial {
		m.spawn(cfg)
	}
	return m
}

func (m *Manager[C, S]) spawn(cfg C) {
	sv := newSupervisor[C, S](m.ctx, cfg.Key(), m.starter)
	m.svs[cfg.Key()] = sv
	sv.trySend(cfg)
}

// Update routes cfg to its key's supervisor. If the key is unknown, a new
// supervisor is spawned (I3). If known, a non-blocking send is attempted;
// a full slot returns errors.ErrBusy without blocking the caller.
func (m *Manager[C, S]) Update(cfg C) error {
	m.mu.Lock()
	sv, ok := m.svs[cfg.Key()]
	if !ok {
		m.spawn(cfg)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	select {
	case <-sv.done:
		return errors.ErrClosed
	default:
	}

	if !sv.trySend(cfg) {
		return errors.ErrBusy
	}
	return nil
}

// Stop removes key from the manager, requests its instance stop, waits for
// termination, and returns the terminal handle.
func (m *Manager[C, S]) Stop(key string) (watch.Handle[S], bool) {
	m.mu.Lock()
	sv, ok := m.svs[key]
	if ok {
		delete(m.svs, key)
	}
	m.mu.Unlock()

	if !ok {
		var zero watch.Handle[S]
		return zero, false
	}
	return sv.stopAndWait()
}

// AllStatus returns a snapshot of every key's current handle.
func (m *Manager[C, S]) AllStatus() map[string]watch.Handle[S] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]watch.Handle[S], len(m.svs))
	for key, sv := range m.svs {
		if h, ok := sv.snapshot(); ok {
			out[key] = h
		}
	}
	return out
}

// Status returns the current handle for a single key.
func (m *Manager[C, S]) Status(key string) (watch.Handle[S], bool) {
	m.mu.RLock()
	sv, ok := m.svs[key]
	m.mu.RUnlock()
	if !ok {
		var zero watch.Handle[S]
		return zero, false
	}
	return sv.snapshot()
}
