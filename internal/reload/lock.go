package reload

import "context"

// Lock is a single-slot semaphore held around every operation that mutates
// the database, so a manual reset can never overlap a reload.
type Lock struct {
	ch chan struct{}
}

func NewLock() *Lock {
	return &Lock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free or ctx is done
func (l *Lock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the lock; releasing an unlocked Lock panics
func (l *Lock) Release() {
	select {
	case <-l.ch:
	default:
		panic("reload: release of unlocked Lock")
	}
}
