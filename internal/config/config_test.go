package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Sandbox.CompileTimeoutSecs != 60 {
		t.Errorf("default compile timeout = %d, want 60", cfg.Sandbox.CompileTimeoutSecs)
	}
	if cfg.Sandbox.ExecuteTimeoutSecs != 30 {
		t.Errorf("default execute timeout = %d, want 30", cfg.Sandbox.ExecuteTimeoutSecs)
	}
	if cfg.Scheduler.RetentionSeconds != 3600 {
		t.Errorf("default retention = %d, want 3600", cfg.Scheduler.RetentionSeconds)
	}
	if cfg.Admin.SocketPath != "/tmp/code_server_admin.sock" {
		t.Errorf("default admin socket = %q", cfg.Admin.SocketPath)
	}
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  port: 9090\nsandbox:\n  root: " + filepath.Join(dir, "sbx") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sandbox.ExecuteTimeoutSecs != 30 {
		t.Errorf("unrelated default was clobbered: execute timeout = %d", cfg.Sandbox.ExecuteTimeoutSecs)
	}
	if _, err := os.Stat(cfg.ProcessingDir()); err != nil {
		t.Errorf("processing dir not created: %v", err)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  port: 9090\nsandbox:\n  root: " + filepath.Join(dir, "sbx") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODESERVER_PORT", "7000")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000 from env", cfg.Server.Port)
	}
}
