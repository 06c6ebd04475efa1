package ring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/shackles/internal/admin"
	"github.com/danmuck/shackles/internal/completion"
	"github.com/danmuck/shackles/internal/link"
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/scheduler"
	"github.com/rs/zerolog/log"
)

// Ring process configuration.
type ServiceConfig struct {
	ServiceID       string
	Peers           []peer.Address
	CloseRing       bool
	BindConcurrency int
	AdminListenAddr string
	CORSOrigins     []string
	Scheduler       scheduler.Config
	Link            link.Config
}

// Ring defaults: three loopback peers wired into a closed ring.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ServiceID: "shackles.ring",
		Peers: []peer.Address{
			peer.New(peer.DefaultHost, 9001),
			peer.New(peer.DefaultHost, 9002),
			peer.New(peer.DefaultHost, 9003),
		},
		CloseRing: true,
		Scheduler: scheduler.DefaultConfig(),
		Link:      link.DefaultConfig(),
	}
}

// Validate rejects empty, duplicate and non-loopback peer lists.
func (c ServiceConfig) Validate() error {
	if len(c.Peers) == 0 {
		return errors.New("ring: at least one peer is required")
	}
	seen := make(map[peer.Address]struct{}, len(c.Peers))
	for _, p := range c.Peers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("ring: peer %s: %w", p, err)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("ring: duplicate peer %s", p)
		}
		seen[p] = struct{}{}
	}
	if c.BindConcurrency < 0 {
		return errors.New("ring: bind_concurrency must be >= 0")
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	return c.Link.Validate()
}

// Ring service owning the scheduler, orchestrator and optional admin API.
type Service struct {
	cfg   ServiceConfig
	sched *scheduler.NetScheduler
	orch  *Orchestrator
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig wires a TCP scheduler and link factory under cfg.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	sched := scheduler.NewNetScheduler(cfg.Scheduler)
	factory := link.NewFactory(sched, cfg.Link)
	return &Service{
		cfg:   cfg,
		sched: sched,
		orch: New(sched, factory, Config{
			CloseRing:       cfg.CloseRing,
			BindConcurrency: cfg.BindConcurrency,
		}),
	}
}

func (s *Service) Orchestrator() *Orchestrator {
	return s.orch
}

// Ring runtime entrypoint that blocks until signal shutdown or until the
// ring ends on its own.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext builds the ring, wires it and waits. Cancelling ctx is a clean
// shutdown; a peer failure or bind failure is returned.
func (s *Service) RunContext(ctx context.Context) error {
	defer s.sched.Close()
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	if err := s.orch.Build(ctx, s.cfg.Peers); err != nil {
		if cerr := s.orch.CancelAll(); cerr != nil {
			log.Warn().Err(cerr).Msg("ring.Service.RunContext cleanup after failed build")
		}
		return err
	}
	log.Info().Int("peers", s.orch.Len()).Bool("close_ring", s.cfg.CloseRing).Msg("ring.Service.RunContext built")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			_ = s.orch.CancelAll()
			return fmt.Errorf("ring: admin listen %s: %w", addr, err)
		}
		srv := admin.New(s.cfg.ServiceID, s.orch, s.cfg.CORSOrigins)
		go func() {
			adminErr <- srv.Serve(runCtx, ln)
		}()
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.orch.Run(runCtx)
	}()

	var err error
	select {
	case err = <-runErr:
		if err != nil {
			log.Error().Err(err).Msg("ring.Service.RunContext ring failed")
		} else {
			log.Info().Msg("ring.Service.RunContext ring completed")
		}
	case <-ctx.Done():
		log.Warn().Msg("ring.Service.RunContext shutting down")
		_ = s.orch.CancelAll()
		if rerr := <-runErr; !isShutdown(rerr) {
			err = rerr
		}
	case aerr := <-adminErr:
		log.Error().Err(aerr).Msg("ring.Service.RunContext admin server stopped")
		cancel()
		_ = s.orch.CancelAll()
		<-runErr
		err = aerr
	}

	if cerr := s.orch.CancelAll(); cerr != nil {
		log.Warn().Err(cerr).Msg("ring.Service.RunContext cancel")
	}
	return err
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, completion.ErrCancelled) || errors.Is(err, context.Canceled)
}
