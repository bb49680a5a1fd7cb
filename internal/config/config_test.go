package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.BlockSize != 512 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Engines.Default != "sine" {
		t.Fatalf("expected sine default engine, got %q", cfg.Engines.Default)
	}
}

func TestLoadFile(t *testing.T) {
	doc := `
service_name: ucrad-test
audio:
  sample_rate: 48000
  channels: 2
  block_size: 256
engines:
  dir: /opt/engines
  default: world
`
	path := filepath.Join(t.TempDir(), "ucra.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "ucrad-test" {
		t.Fatalf("expected service name override, got %q", cfg.ServiceName)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 2 || cfg.Audio.BlockSize != 256 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Engines.Dir != "/opt/engines" || cfg.Engines.Default != "world" {
		t.Fatalf("unexpected engines config: %+v", cfg.Engines)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default server port, got %d", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UCRA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("UCRA_BUS_USERNAME", "alice")
	t.Setenv("UCRA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("UCRA_AUDIO_BLOCK_SIZE", "1024")
	t.Setenv("UCRA_ENGINES_DIR", "/srv/engines")
	t.Setenv("UCRA_JOURNAL_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" {
		t.Fatal("expected username override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Audio.BlockSize != 1024 {
		t.Fatalf("expected block size 1024, got %d", cfg.Audio.BlockSize)
	}
	if cfg.Engines.Dir != "/srv/engines" {
		t.Fatalf("expected engines dir override, got %q", cfg.Engines.Dir)
	}
	if cfg.Journal.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override, got %q", cfg.Journal.RetentionMode)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"zero block size", func(c *Config) { c.Audio.BlockSize = 0 }},
		{"bad retention", func(c *Config) { c.Journal.RetentionMode = "forever" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad exporter", func(c *Config) { c.Telemetry.Exporter = "jaeger" }},
		{"no servers external", func(c *Config) { c.Bus.Embedded = false; c.Bus.Servers = nil }},
		{"no engines dir", func(c *Config) { c.Engines.Dir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
