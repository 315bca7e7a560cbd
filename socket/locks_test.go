package socket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketLocks_AcquireRelease(t *testing.T) {
	l := newTicketLocks(50 * time.Millisecond)

	release, err := l.acquire("ticket-1")
	assert.NoError(t, err)
	release()

	// lock entry is dropped once nobody holds or waits on it
	l.mu.Lock()
	assert.Empty(t, l.m)
	l.mu.Unlock()
}

func TestTicketLocks_BusyTimeout(t *testing.T) {
	l := newTicketLocks(20 * time.Millisecond)

	release, err := l.acquire("ticket-1")
	assert.NoError(t, err)

	_, err = l.acquire("ticket-1")
	assert.Equal(t, ErrBusy, err)

	release()

	release2, err := l.acquire("ticket-1")
	assert.NoError(t, err)
	release2()
}

func TestTicketLocks_IndependentTickets(t *testing.T) {
	l := newTicketLocks(20 * time.Millisecond)

	release1, err := l.acquire("ticket-1")
	assert.NoError(t, err)
	defer release1()

	release2, err := l.acquire("ticket-2")
	assert.NoError(t, err)
	release2()
}

func TestTicketLocks_HandoffToWaiter(t *testing.T) {
	l := newTicketLocks(time.Second)

	release, err := l.acquire("ticket-1")
	assert.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := l.acquire("ticket-1")
		if err == nil {
			r2()
		}
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}
