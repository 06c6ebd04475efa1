// Package scheduler is the execution context peers run on. The orchestrator
// receives a Scheduler instead of reaching for a process-wide event loop.
package scheduler

import (
	"context"
	"errors"
	"net"

	"github.com/danmuck/shackles/internal/peer"
)

var ErrClosed = errors.New("scheduler: closed")

// Handler serves one accepted or dialed connection. ctx ends when the
// scheduler shuts down.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

type HandlerFunc func(ctx context.Context, conn net.Conn)

func (f HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Listener is a bound endpoint. Close stops accepting; it does not end
// connections already handed to the handler.
type Listener interface {
	Addr() net.Addr
	Close() error
}

type Scheduler interface {
	Listen(ctx context.Context, addr peer.Address, h Handler) (Listener, error)
	// Dial connects to addr. A non-nil h is run on the connection in its own
	// goroutine; with a nil h reading is left to the caller.
	Dial(ctx context.Context, addr peer.Address, h Handler) (net.Conn, error)
}
