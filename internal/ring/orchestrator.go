package ring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/shackles/internal/completion"
	"github.com/danmuck/shackles/internal/link"
	"github.com/danmuck/shackles/internal/observability"
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/protocol"
	"github.com/danmuck/shackles/internal/scheduler"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// HandlerFactory builds the connection handler for one listener or dial.
// *link.Factory satisfies it.
type HandlerFactory interface {
	New(done *completion.Handle, sctx link.SessionContext) scheduler.Handler
}

// Config shapes how the ring is wired.
type Config struct {
	// CloseRing adds the wraparound pair (last, first). Without it the
	// peers form a chain.
	CloseRing bool
	// BindConcurrency caps parallel binds in Build; <= 0 means unlimited.
	BindConcurrency int
}

// DefaultConfig wires a closed ring with unlimited parallel binds.
func DefaultConfig() Config {
	return Config{CloseRing: true}
}

// Entry is one registered peer. Listener and Done are created together and
// torn down together.
type Entry struct {
	Addr     peer.Address
	Listener scheduler.Listener
	Done     *completion.Handle

	connected bool
}

// Orchestrator owns the ring table. Ring adjacency is insertion order.
type Orchestrator struct {
	sched   scheduler.Scheduler
	factory HandlerFactory
	cfg     Config

	mu      sync.RWMutex
	order   []peer.Address
	entries map[peer.Address]*Entry
}

// New returns an empty orchestrator that binds and dials through sched.
func New(sched scheduler.Scheduler, factory HandlerFactory, cfg Config) *Orchestrator {
	o := &Orchestrator{sched: sched, factory: factory, cfg: cfg}
	o.Reset()
	return o
}

// Reset drops every entry without closing anything.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

func (o *Orchestrator) resetLocked() {
	o.order = nil
	o.entries = make(map[peer.Address]*Entry)
	observability.SetRingPeers(0)
}

// AddPeer registers a peer. Re-adding an address replaces its listener and
// completion in place; the old ones are not closed and the ring position is
// kept.
func (o *Orchestrator) AddPeer(done *completion.Handle, listener scheduler.Listener, addr peer.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.entries[addr]; exists {
		log.Warn().Str("peer", addr.String()).Msg("ring.Orchestrator.AddPeer replacing existing entry")
	} else {
		log.Debug().Str("peer", addr.String()).Msg("ring.Orchestrator.AddPeer")
		o.order = append(o.order, addr)
	}
	o.entries[addr] = &Entry{Addr: addr, Listener: listener, Done: done}
	observability.SetRingPeers(len(o.order))
}

type bindResult struct {
	listener scheduler.Listener
	done     *completion.Handle
	err      error
}

// Build starts one listening peer per address. Every bind is attempted
// before Build returns. Peers are registered in address order up to the
// first failure; listeners bound after it are closed. Cleanup of the
// registered peers on failure is the caller's job (CancelAll).
func (o *Orchestrator) Build(ctx context.Context, addrs []peer.Address) error {
	results := make([]bindResult, len(addrs))

	var g errgroup.Group
	if o.cfg.BindConcurrency > 0 {
		g.SetLimit(o.cfg.BindConcurrency)
	}
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			done := completion.New()
			l, err := o.sched.Listen(ctx, addr, o.factory.New(done, link.ServerContext{Addr: addr}))
			observability.RecordBind(err)
			results[i] = bindResult{listener: l, done: done, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	for i, addr := range addrs {
		res := results[i]
		switch {
		case firstErr != nil:
			if res.err == nil {
				_ = res.listener.Close()
			}
		case res.err != nil:
			firstErr = fmt.Errorf("ring: bind %s: %w", addr, res.err)
			log.Error().Err(res.err).Str("peer", addr.String()).Msg("ring.Orchestrator.Build bind failed")
		default:
			o.AddPeer(res.done, res.listener, addr)
			log.Info().Str("peer", addr.String()).Str("listen", listenAddr(res.listener)).Msg("ring.Orchestrator.Build bound")
		}
	}
	return firstErr
}

// Connect tells the peer at a1 to link to a2 over a short-lived connection.
// Nothing is read back.
func (o *Orchestrator) Connect(ctx context.Context, a1, a2 peer.Address) (err error) {
	defer func() { observability.RecordWiring(err) }()

	header, err := protocol.EncodeConnectHeader(a2.Host, a2.Port)
	if err != nil {
		return fmt.Errorf("ring: connect %s -> %s: %w", a1, a2, err)
	}
	conn, err := o.sched.Dial(ctx, a1, o.factory.New(nil, link.ClientContext{}))
	if err != nil {
		return fmt.Errorf("ring: connect %s -> %s: %w", a1, a2, err)
	}
	_, werr := conn.Write(header)
	cerr := conn.Close()
	if werr != nil {
		return fmt.Errorf("ring: connect %s -> %s: %w", a1, a2, werr)
	}
	if cerr != nil {
		return fmt.Errorf("ring: connect %s -> %s: %w", a1, a2, cerr)
	}

	o.mu.Lock()
	if e, ok := o.entries[a1]; ok {
		e.connected = true
	}
	o.mu.Unlock()
	return nil
}

// ConnectPeerRing sends one instruction per adjacent pair, in order. The
// first failure aborts the remaining pairs.
func (o *Orchestrator) ConnectPeerRing(ctx context.Context) error {
	pairs := Pairs(o.Addresses(), o.cfg.CloseRing)
	log.Debug().Int("pairs", len(pairs)).Bool("close_ring", o.cfg.CloseRing).Msg("ring.Orchestrator.ConnectPeerRing")
	for _, p := range pairs {
		log.Debug().Str("from", p[0].String()).Str("to", p[1].String()).Msg("ring.Orchestrator.ConnectPeerRing connecting")
		if err := o.Connect(ctx, p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// Pairs lists (a[i], a[i+1]) in order plus (last, first) when closing.
// Self-pairs are skipped.
func Pairs(addrs []peer.Address, closeRing bool) [][2]peer.Address {
	if len(addrs) < 2 {
		return nil
	}
	pairs := make([][2]peer.Address, 0, len(addrs))
	for i := 0; i+1 < len(addrs); i++ {
		if addrs[i] == addrs[i+1] {
			continue
		}
		pairs = append(pairs, [2]peer.Address{addrs[i], addrs[i+1]})
	}
	last, first := addrs[len(addrs)-1], addrs[0]
	if closeRing && last != first {
		pairs = append(pairs, [2]peer.Address{last, first})
	}
	return pairs
}

// Run wires the ring and blocks until every peer resolves. The first peer
// error, cancellation included, fails the run at once; the other peers are
// left for CancelAll.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := time.Now()
	log.Info().Int("peers", o.Len()).Msg("ring.Orchestrator.Run starting")
	if err := o.ConnectPeerRing(ctx); err != nil {
		observability.RecordRun(err, time.Since(start))
		return err
	}
	err := completion.WaitAll(ctx, o.handles()...)
	observability.RecordRun(err, time.Since(start))
	return err
}

// CancelAll closes every listener, cancels every completion and resets the
// table, atomically with respect to observers. Listener close errors are
// returned; the table is reset either way.
func (o *Orchestrator) CancelAll() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	for _, addr := range o.order {
		e := o.entries[addr]
		if e.Listener != nil {
			if cerr := e.Listener.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("ring: close %s: %w", addr, cerr))
			}
		}
		if e.Done != nil {
			e.Done.Cancel()
		}
	}
	log.Info().Int("peers", len(o.order)).Msg("ring.Orchestrator.CancelAll")
	o.resetLocked()
	return err
}

// Addresses lists registered peers in ring order.
func (o *Orchestrator) Addresses() []peer.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]peer.Address, len(o.order))
	copy(out, o.order)
	return out
}

func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.order)
}

// Entry returns a copy of the entry registered for addr.
func (o *Orchestrator) Entry(addr peer.Address) (Entry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.entries[addr]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot reports every registered peer in ring order.
func (o *Orchestrator) Snapshot() []peer.Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]peer.Status, 0, len(o.order))
	for i, addr := range o.order {
		e := o.entries[addr]
		st := peer.Status{
			Position:   i,
			Addr:       addr.String(),
			ListenAddr: listenAddr(e.Listener),
			State:      peer.StateBound,
		}
		if e.connected {
			st.State = peer.StateConnected
		}
		if e.Done != nil {
			select {
			case <-e.Done.Done():
				st.State = peer.StateTerminated
				st.Outcome = e.Done.State().String()
				if err := e.Done.Err(); err != nil {
					st.Error = err.Error()
				}
			default:
			}
		}
		out = append(out, st)
	}
	return out
}

func (o *Orchestrator) handles() []*completion.Handle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*completion.Handle, 0, len(o.order))
	for _, addr := range o.order {
		out = append(out, o.entries[addr].Done)
	}
	return out
}

func listenAddr(l scheduler.Listener) string {
	if l == nil {
		return ""
	}
	if a := l.Addr(); a != nil {
		return a.String()
	}
	return ""
}
