// Package service wires every subsystem into a single value passed by
// reference (Design Notes §9: "no ambient singletons"): the session
// roster, the scheduler, the compiler registry, the sandbox executor,
// the output cache, telemetry, the admin control plane, and the debug
// HTTP surface.
package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ssuji15/wolf/internal/adminserver"
	"github.com/ssuji15/wolf/internal/compiler"
	"github.com/ssuji15/wolf/internal/config"
	"github.com/ssuji15/wolf/internal/debugserver"
	"github.com/ssuji15/wolf/internal/outputcache"
	"github.com/ssuji15/wolf/internal/sandbox"
	"github.com/ssuji15/wolf/internal/scheduler"
	"github.com/ssuji15/wolf/internal/session"
	"github.com/ssuji15/wolf/internal/telemetry"
)

// Service bundles the collaborators every listener needs. It owns no
// global state: every field here is constructed once in New and handed
// around by pointer.
type Service struct {
	Config    *config.Config
	Roster    *session.Roster
	Scheduler *scheduler.Scheduler
	Registry  *compiler.Registry
	Executor  sandbox.Executor
	Outputs   *outputcache.Cache
	Telemetry *telemetry.Provider
	Admin     *adminserver.Server
	Debug     *debugserver.Server

	startedAt time.Time
	listener  net.Listener
}

// counters adapts Service to telemetry.StatsSource (spec §3: Aggregate
// counters), combining scheduler and roster state without either of
// those packages importing telemetry.
type counters struct{ svc *Service }

func (c counters) Counters() telemetry.AggregateCounters {
	stats := c.svc.Scheduler.Stats()
	var bytesSent, bytesRecv uint64
	for _, sn := range c.svc.Roster.Snapshots() {
		bytesSent += sn.BytesSent
		bytesRecv += sn.BytesRecv
	}
	return telemetry.AggregateCounters{
		TotalClients:  c.svc.Roster.TotalAccepted(),
		ActiveClients: uint64(c.svc.Roster.ActiveCount()),
		TotalJobs:     stats.TotalJobs,
		ActiveJobs:    stats.ActiveJobs,
		CompletedJobs: stats.CompletedJobs,
		FailedJobs:    stats.FailedJobs,
		BytesReceived: bytesRecv,
		BytesSent:     bytesSent,
	}
}

// New constructs every subsystem from cfg but does not start listening;
// call Run to begin serving. onShutdown is invoked when an admin client
// issues a Shutdown command.
func New(ctx context.Context, cfg *config.Config, onShutdown func(adminserver.ShutdownRequest)) (*Service, error) {
	startedAt := time.Now()

	registry := compiler.Probe()

	executor := sandbox.NewOSExecutor(cfg.ProcessingDir(), time.Duration(cfg.Sandbox.KillGraceSecs)*time.Second)
	outputs := outputcache.New(cfg.Sandbox.MaxOutputBytes*256, 300)

	sched := scheduler.New(scheduler.Config{
		MaxQueueDepth:   cfg.Scheduler.MaxQueueDepth,
		RetentionWindow: time.Duration(cfg.Scheduler.RetentionSeconds) * time.Second,
		SweepInterval:   time.Duration(cfg.Scheduler.SweepIntervalSecs) * time.Second,
		CompileTimeout:  time.Duration(cfg.Sandbox.CompileTimeoutSecs) * time.Second,
		ExecuteTimeout:  time.Duration(cfg.Sandbox.ExecuteTimeoutSecs) * time.Second,
		MaxOutputBytes:  cfg.Sandbox.MaxOutputBytes,
	}, registry, executor, outputs)

	roster := session.NewRoster()

	tel, err := telemetry.New(ctx, "codeserverd", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("service: initializing telemetry: %w", err)
	}

	svc := &Service{
		Config:    cfg,
		Roster:    roster,
		Scheduler: sched,
		Registry:  registry,
		Executor:  executor,
		Outputs:   outputs,
		Telemetry: tel,
		startedAt: startedAt,
	}

	if err := tel.RegisterCounters("codeserverd", counters{svc}); err != nil {
		log.Warn().Err(err).Msg("failed to register aggregate counters, continuing without them")
	}

	svc.Debug = debugserver.New(roster, sched, startedAt)
	svc.Admin = adminserver.New(cfg.Admin.SocketPath, time.Duration(cfg.Admin.TimeoutSecs)*time.Second, roster, sched, startedAt, onShutdown)

	return svc, nil
}

// Run starts the public TCP listener, the scheduler worker and sweeper,
// and the admin listener, blocking until ctx is cancelled. It returns
// once the accept loop has ended and both listeners are closed; it does
// not wait for the scheduler worker, the sweeper, the admin session or
// the debug server to stop.
func (s *Service) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("service: listening on %s: %w", addr, err)
	}
	s.listener = l
	log.Info().Str("addr", addr).Msg("public listener started")

	if err := s.Admin.Listen(); err != nil {
		l.Close()
		return fmt.Errorf("service: listening on admin socket: %w", err)
	}
	log.Info().Str("socket", s.Config.Admin.SocketPath).Msg("admin listener started")

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		l.Close()
		s.Admin.Close()
		close(done)
	}()

	go s.Scheduler.Run(ctx)
	go s.Scheduler.RunSweeper(ctx)
	go func() {
		if err := s.Admin.Serve(); err != nil {
			log.Debug().Err(err).Msg("admin listener stopped")
		}
	}()

	go s.serveDebug(ctx)

	s.acceptLoop(ctx, l)
	<-done
	return nil
}

func (s *Service) acceptLoop(ctx context.Context, l net.Listener) {
	deps := session.Deps{
		Roster:      s.Roster,
		Scheduler:   s.Scheduler,
		Registry:    s.Registry,
		MaxFileSize: s.Config.Session.MaxFileSize,
		Timeout:     time.Duration(s.Config.Session.ClientTimeoutSecs) * time.Second,
	}
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Debug().Err(err).Msg("accept failed")
				return
			}
		}
		if s.Roster.ActiveCount() >= s.Config.Session.MaxSessions {
			conn.Close()
			continue
		}
		h := session.NewHandler(deps, conn)
		go h.Serve()
	}
}

// debugListenAddr is the loopback-only address the debug HTTP surface
// binds to (spec §6: an operator reaches it via port-forward, never
// directly from clients).
const debugListenAddr = "127.0.0.1:6060"

func (s *Service) serveDebug(ctx context.Context) {
	if !s.Config.Debug {
		return
	}
	srv := &http.Server{
		Addr:    debugListenAddr,
		Handler: s.Debug.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", debugListenAddr).Msg("debug listener started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("debug server stopped")
	}
}

// Shutdown closes the public listener and the admin socket. It does not
// drain the scheduler or kill running jobs, and has no force option.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		s.listener.Close()
	}
	return s.Admin.Close()
}
