// Package memory keeps sessions and recipients in process memory. It is
// used for development and tests; state is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"venue-vote/internal/domain/session"
)

type sessionEntry struct {
	mu sync.Mutex
	s  *session.Session
}

type SessionRepo struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{entries: make(map[string]*sessionEntry)}
}

func (r *SessionRepo) entry(id string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *SessionRepo) Create(ctx context.Context, s *session.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[s.ID]; exists {
		return "", fmt.Errorf("%w: duplicate session id %s", session.ErrPersistence, s.ID)
	}
	r.entries[s.ID] = &sessionEntry{s: s.Clone()}
	return s.ID, nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := r.entry(id)
	if !ok {
		return nil, session.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone(), nil
}

func (r *SessionRepo) Put(ctx context.Context, s *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := r.entry(s.ID)
	if !ok {
		return session.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s = s.Clone()
	return nil
}

func (r *SessionRepo) ListActive(ctx context.Context) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	res := []session.Session{}
	for _, e := range entries {
		e.mu.Lock()
		if e.s.Status == session.StatusActive {
			res = append(res, *e.s.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *SessionRepo) Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, session.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := e.s.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	e.s = work.Clone()
	return work, nil
}

func (r *SessionRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}
