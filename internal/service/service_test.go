package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ssuji15/wolf/internal/adminserver"
	"github.com/ssuji15/wolf/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Sandbox.Root = t.TempDir()
	cfg.Admin.SocketPath = filepath.Join(t.TempDir(), "admin.sock")
	cfg.Admin.TimeoutSecs = 5
	cfg.Session.ClientTimeoutSecs = 5
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func TestNewWiresEverySubsystem(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.Roster == nil || svc.Scheduler == nil || svc.Registry == nil || svc.Executor == nil || svc.Outputs == nil || svc.Telemetry == nil || svc.Admin == nil || svc.Debug == nil {
		t.Fatal("expected every subsystem to be non-nil after New")
	}
}

func TestRunStartsAndStopsCleanlyOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	var shutdownCalls int
	svc, err := New(context.Background(), cfg, func(adminserver.ShutdownRequest) { shutdownCalls++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
