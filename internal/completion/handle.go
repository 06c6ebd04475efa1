// Package completion provides a single-resolution signal that a peer's
// session work has ended, plus an aggregate wait over many of them.
package completion

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the error of a cancelled handle.
var ErrCancelled = errors.New("completion: cancelled")

// State is where a handle is in its single transition out of Pending.
type State int

const (
	Pending State = iota
	Resolved
	Errored
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Errored:
		return "errored"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle settles at most once. The zero value is not usable; call New.
type Handle struct {
	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

// New returns a pending handle.
func New() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Resolve settles the handle with err (nil for success). It reports whether
// this call was the one that settled it.
func (h *Handle) Resolve(err error) bool {
	if err == nil {
		return h.settle(Resolved, nil)
	}
	return h.settle(Errored, err)
}

// Cancel settles the handle as cancelled; no-op once settled.
func (h *Handle) Cancel() bool {
	return h.settle(Cancelled, ErrCancelled)
}

func (h *Handle) settle(state State, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Pending {
		return false
	}
	h.state = state
	h.err = err
	close(h.done)
	return true
}

// Done is closed once the handle settles.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err is nil while pending or after a successful resolve.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the handle settles or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
