package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hangarlabs/hangar/models"
)

type watcher struct {
	id uuid.UUID
	fn WatchFunc
}

// MemoryStore is a process-local Store for composition roots that do not
// persist the session across restarts, and for tests.
type MemoryStore struct {
	mu       sync.Mutex
	current  models.Session
	ok       bool
	watchers []watcher
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.ok
}

func (m *MemoryStore) Set(s models.Session) error {
	if err := validate(s); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = s
	m.ok = true
	fns := m.watchersLocked()
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s, true)
	}
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.current = models.Session{}
	m.ok = false
	fns := m.watchersLocked()
	m.mu.Unlock()

	for _, fn := range fns {
		fn(models.Session{}, false)
	}
	return nil
}

func (m *MemoryStore) Watch(fn WatchFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.watchers = append(m.watchers, watcher{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, w := range m.watchers {
			if w.id == id {
				m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
				return
			}
		}
	}
}

// watchersLocked copies the registered callbacks so they can be invoked
// without holding the lock.
func (m *MemoryStore) watchersLocked() []WatchFunc {
	fns := make([]WatchFunc, len(m.watchers))
	for i, w := range m.watchers {
		fns[i] = w.fn
	}
	return fns
}
