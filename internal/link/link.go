package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/shackles/internal/completion"
	"github.com/danmuck/shackles/internal/observability"
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/protocol"
	"github.com/danmuck/shackles/internal/scheduler"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session kinds reported to metrics.
const (
	KindClient      = "client"
	KindInstruction = "instruction"
	KindInbound     = "inbound"
)

// Dialer opens the outbound ring link. scheduler.Scheduler satisfies it.
type Dialer interface {
	Dial(ctx context.Context, addr peer.Address, h scheduler.Handler) (net.Conn, error)
}

// Factory builds one Handler per listener or dial. Every connection the
// handler serves gets its own session id.
type Factory struct {
	dialer  Dialer
	cfg     Config
	backoff *backoff
}

// NewFactory returns a Factory that opens ring links through dialer.
func NewFactory(dialer Dialer, cfg Config) *Factory {
	return &Factory{
		dialer:  dialer,
		cfg:     cfg,
		backoff: newBackoff(cfg.Backoff, time.Now().UnixNano()),
	}
}

// New returns the handler for sctx. done may be nil for client sessions; a
// server session settles it when its ring link ends.
func (f *Factory) New(done *completion.Handle, sctx SessionContext) scheduler.Handler {
	switch c := sctx.(type) {
	case ServerContext:
		return &serverHandler{factory: f, done: done, addr: c.Addr}
	default:
		return clientHandler{}
	}
}

func (f *Factory) shouldRetry(attempt int) bool {
	if f.cfg.MaxDialAttempts <= 0 {
		return true
	}
	return attempt < f.cfg.MaxDialAttempts
}

type clientHandler struct{}

// Ad-hoc instruction connection: nothing is expected back, so drain until
// either side closes.
func (clientHandler) ServeConn(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	_, _ = io.Copy(io.Discard, conn)
	observability.RecordLinkSession(KindClient, "closed")
}

type serverHandler struct {
	factory *Factory
	done    *completion.Handle
	addr    peer.Address

	// linked is set by the first accepted connect instruction. Only that
	// ring link settles done.
	linked atomic.Bool
}

func (h *serverHandler) ServeConn(parent context.Context, conn net.Conn) {
	ctx, cancel := withDone(parent, h.done)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	id := uuid.NewString()
	logger := log.With().
		Str("session", id).
		Str("peer", h.addr.String()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			logger.Debug().Msg("link.serverHandler closed before first frame")
			return
		}
		logger.Warn().Err(err).Msg("link.serverHandler dropping connection with invalid first frame")
		observability.RecordLinkSession(KindInstruction, "invalid")
		return
	}

	switch msg.Type {
	case protocol.MsgConnect:
		_ = conn.Close()
		h.handleConnect(ctx, logger, id, msg.Addr)
	case protocol.MsgLinkHello:
		h.holdInbound(ctx, logger, conn, msg)
	}
}

func (h *serverHandler) handleConnect(ctx context.Context, logger zerolog.Logger, id string, target peer.Address) {
	logger = logger.With().Str("target", target.String()).Logger()
	if target == h.addr {
		logger.Warn().Msg("link.serverHandler ignoring connect instruction to self")
		observability.RecordLinkSession(KindInstruction, "ignored")
		return
	}
	if err := target.Validate(); err != nil {
		logger.Warn().Err(err).Msg("link.serverHandler ignoring connect instruction")
		observability.RecordLinkSession(KindInstruction, "ignored")
		return
	}

	if !h.linked.CompareAndSwap(false, true) {
		logger.Warn().Msg("link.serverHandler ignoring connect instruction, ring link already opened")
		observability.RecordLinkSession(KindInstruction, "ignored")
		return
	}

	logger.Info().Msg("link.serverHandler opening ring link")
	err := h.holdRingLink(ctx, logger, id, target)
	if ctx.Err() != nil {
		// peer cancelled or scheduler shut down; the handle is not ours to settle
		logger.Debug().Msg("link.serverHandler ring link cancelled")
		observability.RecordLinkSession(KindInstruction, "cancelled")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("link.serverHandler ring link failed")
		observability.RecordLinkSession(KindInstruction, "error")
	} else {
		logger.Info().Msg("link.serverHandler ring link closed by successor")
		observability.RecordLinkSession(KindInstruction, "closed")
	}
	if h.done != nil {
		h.done.Resolve(err)
	}
}

// holdRingLink dials target, announces itself and blocks until the link
// ends. A clean remote close returns nil.
func (h *serverHandler) holdRingLink(ctx context.Context, logger zerolog.Logger, id string, target peer.Address) error {
	conn, err := h.dial(ctx, logger, target)
	if err != nil {
		return fmt.Errorf("link: dial %s: %w", target, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	hello, err := protocol.EncodeHello(h.addr, id)
	if err != nil {
		return err
	}
	if _, err := conn.Write(hello); err != nil {
		return fmt.Errorf("link: hello %s: %w", target, err)
	}
	if _, err := io.Copy(io.Discard, conn); err != nil {
		return fmt.Errorf("link: read %s: %w", target, err)
	}
	return nil
}

func (h *serverHandler) dial(ctx context.Context, logger zerolog.Logger, target peer.Address) (net.Conn, error) {
	var attempt int
	for {
		attempt++
		conn, err := h.factory.dialer.Dial(ctx, target, nil)
		observability.RecordLinkDial(err)
		if err == nil {
			return conn, nil
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("link.serverHandler dial failed")
		if ctx.Err() != nil || !h.factory.shouldRetry(attempt) {
			return nil, err
		}
		if err := h.factory.backoff.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (h *serverHandler) holdInbound(ctx context.Context, logger zerolog.Logger, conn net.Conn, hello protocol.Message) {
	logger = logger.With().Str("origin", hello.Addr.String()).Str("origin_session", hello.SessionID).Logger()
	logger.Info().Msg("link.serverHandler ring link from predecessor")
	_, err := io.Copy(io.Discard, conn)
	switch {
	case ctx.Err() != nil:
		observability.RecordLinkSession(KindInbound, "cancelled")
	case err != nil:
		logger.Warn().Err(err).Msg("link.serverHandler inbound ring link read failed")
		observability.RecordLinkSession(KindInbound, "error")
	default:
		logger.Debug().Msg("link.serverHandler inbound ring link closed")
		observability.RecordLinkSession(KindInbound, "closed")
	}
}

// withDone derives a context that also ends when done settles.
func withDone(parent context.Context, done *completion.Handle) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if done == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-done.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
