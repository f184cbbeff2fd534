package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/peerglass/peerglass/internal/app/session"
	"github.com/peerglass/peerglass/internal/domain"
)

// Registry tracks live media sessions so shutdown can close them all.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*session.Manager
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SessionID]*session.Manager)}
}

func (r *Registry) Add(m *session.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[m.ID()] = m
	log.Info().Str("module", "app.registry").Str("session", string(m.ID())).Int("total", len(r.sessions)).Msg("session registered")
}

// Remove drops the entry; typically wired as the manager's OnClosed.
func (r *Registry) Remove(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("session", string(id)).Int("total", len(r.sessions)).Msg("session removed")
}

func (r *Registry) Get(id domain.SessionID) (*session.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sessions[id]
	return m, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every live session concurrently and waits for all of
// them. Used on server shutdown.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.RLock()
	managers := make([]*session.Manager, 0, len(r.sessions))
	for _, m := range r.sessions {
		managers = append(managers, m)
	}
	r.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, m := range managers {
		g.Go(func() error {
			m.Close()
			return nil
		})
	}
	return g.Wait()
}
