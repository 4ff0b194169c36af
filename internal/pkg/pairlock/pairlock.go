// Package pairlock provides keyed mutexes used to serialize mutations on the
// same relationship pair or the same notification aggregate key. Operations on
// different keys proceed fully in parallel; database row locks remain the
// cross-process backstop.
package pairlock

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
)

// Locker hands out one mutex per key
type Locker struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

// New creates a Locker
func New() *Locker {
	return &Locker{locks: xsync.NewMapOf[*sync.Mutex]()}
}

// Lock acquires the mutex for key, creating it on first use.
// The returned func releases it.
func (l *Locker) Lock(key string) func() {
	mu, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// PairKey returns a canonical key for an unordered identity pair, so that
// Follow(A,B) and RemoveFollower(B,A) contend on the same mutex.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if strings.Compare(as, bs) > 0 {
		as, bs = bs, as
	}
	return as + "|" + bs
}
