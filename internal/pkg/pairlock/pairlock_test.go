package pairlock

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	if PairKey(a, b) != PairKey(b, a) {
		t.Fatalf("pair key must not depend on argument order")
	}
	if PairKey(a, b) == PairKey(a, a) {
		t.Fatalf("distinct pairs must get distinct keys")
	}
}

func TestLockSerializesSameKey(t *testing.T) {
	l := New()
	key := PairKey(uuid.New(), uuid.New())

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("expected 100 serialized increments, got %d", counter)
	}
}
