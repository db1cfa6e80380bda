// Package lock provides a best-effort mutual exclusion used to keep
// scheduler sweeps from overlapping, in process or across replicas.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Release gives a held lock back. Releasing twice is harmless.
type Release func(ctx context.Context) error

type Locker interface {
	// TryLock returns ok=false without waiting when the key is held.
	// The lock expires on its own after ttl.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release Release, ok bool, err error)
}

type Memory struct {
	mu   sync.Mutex
	held map[string]memoryHold
	now  func() time.Time
}

type memoryHold struct {
	token   string
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryHold), now: time.Now}
}

func (m *Memory) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.held[key]; ok && now.Before(h.expires) {
		return nil, false, nil
	}
	token := newToken()
	m.held[key] = memoryHold{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if h, ok := m.held[key]; ok && h.token == token {
			delete(m.held, key)
		}
		return nil
	}, true, nil
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
