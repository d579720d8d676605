package session

import (
	"strings"
	"sync"
)

// Locks serializes logical edits per table. Edits to different tables
// proceed in parallel. A nil *Locks disables locking.
type Locks struct {
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{keyLocks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the table lock is held and returns its release func.
// Names compare case-insensitively, like SQL Server's default collation.
func (l *Locks) Lock(database, table string) func() {
	if l == nil {
		return func() {}
	}
	m := l.getKeyLock(strings.ToLower(database) + "." + strings.ToLower(table))
	m.Lock()
	return m.Unlock
}

func (l *Locks) getKeyLock(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		l.keyLocks[key] = m
	}
	return m
}
