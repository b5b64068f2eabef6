package scheduling

import "sync"

// Locker guards the booking critical section: the whole
// resolve-check-append sequence runs inside one lock so scan-then-insert
// is atomic with respect to every other booker.
type Locker interface {
	WithBookingLock(fn func() error) error
}

// mutexLocker serializes all bookings system-wide behind a single
// mutex. Acquisition is unconditional, with no timeout. A per-provider
// sharded lock table would reduce contention, since the conflict scan
// only needs atomicity per provider, but the single lock is the
// simpler correct choice at this scale.
type mutexLocker struct {
	mu sync.Mutex
}

func NewMutexLocker() Locker {
	return &mutexLocker{}
}

func (l *mutexLocker) WithBookingLock(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
