// Package arbiter provides the mutual-exclusion slots that serialize access to
// one direction of a duplex stream.
package arbiter

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

type waiter struct {
	ready    chan struct{}
	granted  bool
	canceled bool
}

// Slot is a FIFO mutex whose acquisition can be abandoned through a context.
// The zero value is not usable; create slots with NewSlot.
type Slot struct {
	mu      sync.Mutex
	held    bool
	waiters *queue.Queue // *waiter, oldest first
}

// NewSlot returns an unheld slot.
func NewSlot() *Slot {
	return &Slot{waiters: queue.New()}
}

// Acquire blocks until the slot is granted or ctx is done.
// Waiters are granted in arrival order.
func (s *Slot) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.held {
		s.held = true
		s.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	s.waiters.Add(w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	if w.granted {
		// Handed over while ctx fired; pass it on.
		s.mu.Unlock()
		s.Release()
		return ctx.Err()
	}
	w.canceled = true
	s.mu.Unlock()
	return ctx.Err()
}

// Release hands the slot to the oldest live waiter, or frees it.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.held {
		panic("arbiter: release of unheld slot")
	}

	for s.waiters.Length() > 0 {
		w := s.waiters.Remove().(*waiter)
		if w.canceled {
			continue
		}
		w.granted = true
		close(w.ready)
		return
	}
	s.held = false
}

// Held reports whether the slot is currently owned.
func (s *Slot) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}
