// Package config defines the service's tunables and the three-layer
// loading order the teacher's pkg/config uses: compiled-in defaults, an
// optional YAML file, then environment variable overrides. CLI flags are
// applied last by cmd/codeserverd, after Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the single value threaded through the whole service (Design
// Notes §9: no ambient singletons).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Debug     bool            `yaml:"debug"`
	Daemon    bool            `yaml:"daemon"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type SessionConfig struct {
	MaxSessions       int   `yaml:"max_sessions"`
	MaxFileSize       int64 `yaml:"max_file_size"`
	ClientTimeoutSecs int   `yaml:"client_timeout_seconds"`
}

type SandboxConfig struct {
	Root                string `yaml:"root"` // parent of processing/, outgoing/, logs/
	CompileTimeoutSecs  int    `yaml:"compile_timeout_seconds"`
	ExecuteTimeoutSecs  int    `yaml:"execute_timeout_seconds"`
	MaxOutputBytes      int    `yaml:"max_output_bytes"`
	KillGraceSecs       int    `yaml:"kill_grace_seconds"`
}

type SchedulerConfig struct {
	MaxQueueDepth     int `yaml:"max_queue_depth"`
	RetentionSeconds  int `yaml:"retention_seconds"`
	SweepIntervalSecs int `yaml:"sweep_interval_seconds"`
}

type AdminConfig struct {
	SocketPath  string `yaml:"socket_path"`
	TimeoutSecs int    `yaml:"timeout_seconds"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty disables export
}

// Default returns the compiled-in defaults from spec §5/§6.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Session: SessionConfig{
			MaxSessions:       1000,
			MaxFileSize:       10 * 1024 * 1024,
			ClientTimeoutSecs: 300,
		},
		Sandbox: SandboxConfig{
			Root:               "./data",
			CompileTimeoutSecs: 60,
			ExecuteTimeoutSecs: 30,
			MaxOutputBytes:     1 * 1024 * 1024,
			KillGraceSecs:      1,
		},
		Scheduler: SchedulerConfig{
			MaxQueueDepth:     256,
			RetentionSeconds:  3600,
			SweepIntervalSecs: 30,
		},
		Admin: AdminConfig{
			SocketPath:  "/tmp/code_server_admin.sock",
			TimeoutSecs: 300,
		},
	}
}

// Load reads defaults, optionally overlays a YAML file, then applies
// environment overrides, mirroring CodeRushOJ-sandbox's config.Load.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	overrideFromEnv(cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v, err := strconv.Atoi(os.Getenv("CODESERVER_PORT")); err == nil && v > 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CODESERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CODESERVER_ADMIN_SOCKET"); v != "" {
		cfg.Admin.SocketPath = v
	}
	if v := os.Getenv("CODESERVER_SANDBOX_ROOT"); v != "" {
		cfg.Sandbox.Root = v
	}
	if v := os.Getenv("CODESERVER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

// EnsureDirectories creates the on-disk layout required by §6:
// processing/, outgoing/, logs/ under Sandbox.Root.
func (c *Config) EnsureDirectories() error {
	for _, sub := range []string{"processing", "outgoing", "logs"} {
		dir := filepath.Join(c.Sandbox.Root, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// ProcessingDir returns the root directory under which per-job sandboxes
// are created.
func (c *Config) ProcessingDir() string {
	return filepath.Join(c.Sandbox.Root, "processing")
}
