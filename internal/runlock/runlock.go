// Package runlock keeps pipeline runs from overlapping, either inside one
// process or across every process sharing a Redis instance.
package runlock

import (
	"context"
	"sync"
)

// Lock is acquired without blocking. release must be called exactly once
// after a successful acquire.
type Lock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// Local is an in-process lock.
type Local struct {
	mu sync.Mutex
}

var _ Lock = (*Local)(nil)

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
