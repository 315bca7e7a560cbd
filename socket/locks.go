package socket

import (
	"sync"
	"time"
)

// defaultLockWait bounds how long join/send/status operations may wait for a
// ticket's exclusive scope before failing with Busy.
const defaultLockWait = 3 * time.Second

type ticketLock struct {
	sem  chan struct{}
	refs int
}

// ticketLocks serializes all mutations of a single ticket without a global
// lock. Locks are created on demand and dropped once nobody holds or waits
// on them.
type ticketLocks struct {
	mu   sync.Mutex
	wait time.Duration
	m    map[string]*ticketLock
}

func newTicketLocks(wait time.Duration) *ticketLocks {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &ticketLocks{
		wait: wait,
		m:    make(map[string]*ticketLock),
	}
}

// acquire takes the exclusive scope for ticketID, waiting at most the
// configured interval. It returns a release func on success and ErrBusy on
// timeout.
func (l *ticketLocks) acquire(ticketID string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.m[ticketID]
	if !ok {
		tl = &ticketLock{sem: make(chan struct{}, 1)}
		l.m[ticketID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case tl.sem <- struct{}{}:
		return func() {
			<-tl.sem
			l.put(ticketID, tl)
		}, nil
	case <-timer.C:
		l.put(ticketID, tl)
		return nil, ErrBusy
	}
}

func (l *ticketLocks) put(ticketID string, tl *ticketLock) {
	l.mu.Lock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.m, ticketID)
	}
	l.mu.Unlock()
}
