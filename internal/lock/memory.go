package lock

import (
	"context"
	"sync"

	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
)

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker is a keyed mutex for a single process. Idle keys are
// released so the map does not grow with the number of documents.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyedMutex)}
}

func (m *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	km, ok := m.locks[key]
	if !ok {
		km = &keyedMutex{ch: make(chan struct{}, 1)}
		m.locks[key] = km
	}
	km.refs++
	m.mu.Unlock()

	select {
	case km.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, km)
		return nil, domain.Unavailable("lock", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-km.ch
			m.release(key, km)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, km *keyedMutex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	km.refs--
	if km.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *MemoryLocker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
