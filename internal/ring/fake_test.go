package ring

import (
	"bytes"
	"context"
	"net"
	"sync"

	"github.com/danmuck/shackles/internal/completion"
	"github.com/danmuck/shackles/internal/link"
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/protocol"
	"github.com/danmuck/shackles/internal/scheduler"
)

type fakeListener struct {
	addr     peer.Address
	closeErr error

	mu     sync.Mutex
	closes int
}

func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP(l.addr.Host), Port: int(l.addr.Port)}
}

func (l *fakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	return l.closeErr
}

func (l *fakeListener) closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes > 0
}

// instruction is one connect header observed on a dialed connection.
type instruction struct {
	to     peer.Address
	target peer.Address
}

type fakeScheduler struct {
	mu        sync.Mutex
	bindErr   map[peer.Address]error
	dialErr   map[peer.Address]error
	closeErr  map[peer.Address]error
	listeners map[peer.Address]*fakeListener
	handlers  map[peer.Address]scheduler.Handler
	sent      []instruction
	decodeErr []error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		bindErr:   make(map[peer.Address]error),
		dialErr:   make(map[peer.Address]error),
		closeErr:  make(map[peer.Address]error),
		listeners: make(map[peer.Address]*fakeListener),
		handlers:  make(map[peer.Address]scheduler.Handler),
	}
}

func (s *fakeScheduler) Listen(ctx context.Context, addr peer.Address, h scheduler.Handler) (scheduler.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bindErr[addr]; err != nil {
		return nil, err
	}
	l := &fakeListener{addr: addr, closeErr: s.closeErr[addr]}
	s.listeners[addr] = l
	s.handlers[addr] = h
	return l, nil
}

func (s *fakeScheduler) Dial(ctx context.Context, addr peer.Address, h scheduler.Handler) (net.Conn, error) {
	s.mu.Lock()
	err := s.dialErr[addr]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &fakeConn{to: addr, owner: s}, nil
}

func (s *fakeScheduler) instructions() []instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]instruction, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeScheduler) listener(addr peer.Address) *fakeListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners[addr]
}

// fakeConn buffers writes and decodes them as one connect header on Close.
type fakeConn struct {
	net.Conn
	to    peer.Address
	owner *fakeScheduler
	buf   bytes.Buffer
}

func (c *fakeConn) Write(b []byte) (int, error) {
	return c.buf.Write(b)
}

func (c *fakeConn) Close() error {
	host, port, err := protocol.DecodeConnectHeader(&c.buf)
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	if err != nil {
		c.owner.decodeErr = append(c.owner.decodeErr, err)
		return nil
	}
	c.owner.sent = append(c.owner.sent, instruction{to: c.to, target: peer.New(host, port)})
	return nil
}

type factoryCall struct {
	done *completion.Handle
	sctx link.SessionContext
}

type recordingFactory struct {
	mu    sync.Mutex
	calls []factoryCall
}

func (f *recordingFactory) New(done *completion.Handle, sctx link.SessionContext) scheduler.Handler {
	f.mu.Lock()
	f.calls = append(f.calls, factoryCall{done: done, sctx: sctx})
	f.mu.Unlock()
	return scheduler.HandlerFunc(func(ctx context.Context, conn net.Conn) {})
}

func (f *recordingFactory) snapshot() []factoryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]factoryCall, len(f.calls))
	copy(out, f.calls)
	return out
}
