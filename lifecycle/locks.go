package lifecycle

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// keyedLocks serializes work on the same property inside this process so a
// persisted transition and its timer update are applied together.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: map[primitive.ObjectID]*keyedLock{}}
}

func (k *keyedLocks) lock(id primitive.ObjectID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
