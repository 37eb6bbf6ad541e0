// Package lock provides per-key write serialization.
package lock

import (
	"context"
	"sync"

	"github.com/zeebo/xxh3"
)

const stripes = 256

// Local serializes keys inside one process. Keys share a fixed set of
// mutexes picked by hash, so unrelated keys may occasionally wait on each other.
type Local struct {
	stripes [stripes]sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	m := &l.stripes[xxh3.HashString(key)%stripes]

	if m.TryLock() {
		return m.Unlock, nil
	}

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// the goroutine still takes the lock; hand it back once it does
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}
