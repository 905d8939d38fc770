// Package keylock provides a registry of mutexes addressed by key.
//
// Entries are reference counted and removed once no goroutine holds or waits
// on them, so the registry does not grow with the number of distinct keys
// ever seen.
package keylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map serializes work per key while letting different keys proceed in
// parallel. The zero value is not usable; call New.
type Map[K comparable] struct {
	entries *xsync.MapOf[K, *entry]
}

func New[K comparable]() *Map[K] {
	return &Map[K]{entries: xsync.NewMapOf[K, *entry]()}
}

// Lock blocks until the lock for key is held and returns the function that
// releases it. The returned function must be called exactly once.
func (m *Map[K]) Lock(key K) (unlock func()) {
	e, _ := m.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, false
	})
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
			old.refs--
			return old, old.refs == 0
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Map[K]) Len() int {
	return m.entries.Size()
}
