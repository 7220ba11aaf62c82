package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ssuji15/wolf/internal/adminserver"
	"github.com/ssuji15/wolf/internal/config"
	"github.com/ssuji15/wolf/internal/logging"
	"github.com/ssuji15/wolf/internal/service"
)

func main() {
	var (
		port       = flag.Int("port", 0, "public TCP listener port (overrides config)")
		socketPath = flag.String("socket", "", "admin control-plane Unix socket path (overrides config)")
		configPath = flag.String("config", "", "path to a YAML config file")
		debug      = flag.Bool("debug", false, "enable debug-level logging and the loopback debug HTTP surface")
		daemon     = flag.Bool("daemon", false, "run without interactive log coloring")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *socketPath != "" {
		cfg.Admin.SocketPath = *socketPath
	}
	if *debug {
		cfg.Debug = true
	}
	cfg.Daemon = *daemon

	logging.Init("codeserverd", cfg.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onShutdown := func(req adminserver.ShutdownRequest) {
		logging.Log.Info().
			Uint32("delay_seconds", req.DelaySeconds).
			Bool("force", req.Force).
			Msg("shutdown requested via admin control plane")
		if req.DelaySeconds > 0 {
			time.AfterFunc(time.Duration(req.DelaySeconds)*time.Second, cancel)
			return
		}
		cancel()
	}

	svc, err := service.New(ctx, cfg, onShutdown)
	if err != nil {
		logging.Log.Fatal().Err(err).Msg("service initialization failed")
	}

	// SIGPIPE is ignored (spec §5); a write to a half-closed peer socket
	// surfaces as an ordinary error return instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		logging.Log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()

	select {
	case err := <-runErr:
		if err != nil {
			logging.Log.Fatal().Err(err).Msg("service exited with error")
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logging.Log.Error().Err(err).Msg("graceful shutdown failed")
		}
		<-runErr
	}

	logging.Log.Info().Msg("codeserverd stopped")
}
