package scheduler

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/danmuck/shackles/internal/peer"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// NetScheduler runs handlers on real TCP sockets.
type NetScheduler struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	listeners map[*netListener]struct{}
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

func NewNetScheduler(cfg Config) *NetScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &NetScheduler{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[*netListener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Scheduler bind plus accept loop. ctx bounds the bind only; the accept
// loop lives until the listener or the scheduler is closed.
func (s *NetScheduler) Listen(ctx context.Context, addr peer.Address, h Handler) (Listener, error) {
	if h == nil {
		return nil, errors.New("scheduler: nil handler")
	}
	lc := net.ListenConfig{KeepAlive: s.cfg.KeepAlive}
	ln, err := lc.Listen(ctx, "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	l := &netListener{ln: ln, owner: s}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil, ErrClosed
	}
	s.listeners[l] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	log.Debug().Str("addr", ln.Addr().String()).Msg("scheduler.NetScheduler.Listen bound")
	go s.acceptLoop(l, h)
	return l, nil
}

func (s *NetScheduler) Dial(ctx context.Context, addr peer.Address, h Handler) (net.Conn, error) {
	d := net.Dialer{Timeout: s.cfg.DialTimeout, KeepAlive: s.cfg.KeepAlive}
	raw, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	conn, ok := s.admit(raw, h != nil)
	if !ok {
		_ = raw.Close()
		return nil, ErrClosed
	}
	if h != nil {
		go s.run(conn, h)
	}
	return conn, nil
}

// Close cancels every handler context, closes tracked listeners and
// connections, and waits for accept loops and handlers to return.
func (s *NetScheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := make([]*netListener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()
	log.Debug().Int("listeners", len(listeners)).Int("conns", len(conns)).Msg("scheduler.NetScheduler.Close done")
	return err
}

func (s *NetScheduler) acceptLoop(l *netListener, h Handler) {
	defer s.wg.Done()
	for {
		raw, err := l.ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Str("addr", l.Addr().String()).Msg("scheduler.NetScheduler accept failed")
			_ = l.Close()
			return
		}
		conn, ok := s.admit(raw, true)
		if !ok {
			_ = raw.Close()
			return
		}
		go s.run(conn, h)
	}
}

func (s *NetScheduler) run(conn net.Conn, h Handler) {
	defer s.wg.Done()
	defer conn.Close()
	h.ServeConn(s.ctx, conn)
}

// admit tracks conn for shutdown and, when worker is set, reserves a
// WaitGroup slot for its handler. It fails once the scheduler is closed.
func (s *NetScheduler) admit(raw net.Conn, worker bool) (net.Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	conn := &trackedConn{Conn: raw, owner: s}
	s.conns[conn] = struct{}{}
	if worker {
		s.wg.Add(1)
	}
	return conn, true
}

func (s *NetScheduler) forgetConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *NetScheduler) forgetListener(l *netListener) {
	s.mu.Lock()
	delete(s.listeners, l)
	s.mu.Unlock()
}

type netListener struct {
	ln    net.Listener
	owner *NetScheduler
	once  sync.Once
	err   error
}

func (l *netListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *netListener) Close() error {
	l.once.Do(func() {
		l.err = l.ln.Close()
		l.owner.forgetListener(l)
	})
	return l.err
}

type trackedConn struct {
	net.Conn
	owner *NetScheduler
	once  sync.Once
	err   error
}

func (c *trackedConn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
		c.owner.forgetConn(c)
	})
	return c.err
}
