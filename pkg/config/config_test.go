package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.ChunkLoadTimeout != 120000 {
		t.Errorf("expected default timeout 120000, got %d", cfg.Output.ChunkLoadTimeout)
	}
	if !cfg.Features.ExternalSupport {
		t.Error("expected external support enabled by default")
	}
	if cfg.KeepAlive.Transport != TransportAuto {
		t.Errorf("expected auto transport, got %s", cfg.KeepAlive.Transport)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[output]
scriptType = "module"
chunkLoadTimeout = 5000
crossOriginLoading = "anonymous"
uniqueName = "app"

[features]
fetchPriority = true

[keepAlive]
resourceQuery = "?http%3A%2F%2Flocalhost%3A8080%2Flazy-"
transport = "websocket"

[keepAlive.backoff]
initialDelay = "250ms"
maxDelay = "5s"
multiplier = 1.5
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.Output.ScriptType != "module" {
		t.Errorf("expected scriptType module, got %q", cfg.Output.ScriptType)
	}
	if cfg.Output.LoadTimeout() != 5*time.Second {
		t.Errorf("expected 5s load timeout, got %v", cfg.Output.LoadTimeout())
	}
	if cfg.Output.TimeoutSeconds() != 5 {
		t.Errorf("expected 5 timeout seconds, got %v", cfg.Output.TimeoutSeconds())
	}
	if cfg.Output.CrossOriginLoading != CrossOriginAnonymous {
		t.Errorf("unexpected crossOriginLoading %q", cfg.Output.CrossOriginLoading)
	}
	if !cfg.Features.FetchPriority {
		t.Error("expected fetchPriority enabled")
	}
	if cfg.KeepAlive.Transport != TransportWebSocket {
		t.Errorf("unexpected transport %q", cfg.KeepAlive.Transport)
	}
	if cfg.KeepAlive.Backoff.InitialDelay.Duration != 250*time.Millisecond {
		t.Errorf("unexpected initial delay %v", cfg.KeepAlive.Backoff.InitialDelay)
	}
	if cfg.KeepAlive.Backoff.Multiplier != 1.5 {
		t.Errorf("unexpected multiplier %v", cfg.KeepAlive.Backoff.Multiplier)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazyload.yaml")
	content := `
output:
  uniqueName: shop
  crossOriginLoading: use-credentials
keepAlive:
  backoff:
    initialDelay: 2s
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.UniqueName != "shop" {
		t.Errorf("unexpected uniqueName %q", cfg.Output.UniqueName)
	}
	if cfg.Output.CrossOriginLoading != CrossOriginUseCredentials {
		t.Errorf("unexpected crossOriginLoading %q", cfg.Output.CrossOriginLoading)
	}
	if cfg.KeepAlive.Backoff.InitialDelay.Duration != 2*time.Second {
		t.Errorf("unexpected initial delay %v", cfg.KeepAlive.Backoff.InitialDelay)
	}
	if cfg.Addr() != "localhost:9000" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cross origin", func(c *Config) { c.Output.CrossOriginLoading = "same-site" }},
		{"negative timeout", func(c *Config) { c.Output.ChunkLoadTimeout = -1 }},
		{"transport", func(c *Config) { c.KeepAlive.Transport = "carrier-pigeon" }},
		{"multiplier", func(c *Config) { c.KeepAlive.Backoff.Multiplier = 0.5 }},
		{"max below initial", func(c *Config) { c.KeepAlive.Backoff.MaxDelay.Duration = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Output.UniqueName = "dashboard"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Output.UniqueName != "dashboard" {
		t.Errorf("expected uniqueName dashboard, got %q", loaded.Output.UniqueName)
	}
	if loaded.KeepAlive.Backoff.MaxDelay.Duration != 30*time.Second {
		t.Errorf("expected max delay 30s, got %v", loaded.KeepAlive.Backoff.MaxDelay)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{"output": {"uniqueName": "web", "chunkLoadTimeout": 5000}, "keepAlive": {"transport": "websocket", "backoff": {"maxDelay": "10s"}}}`)

	cfg, err := Parse(data, ".json")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Output.UniqueName != "web" || cfg.Output.ChunkLoadTimeout != 5000 {
		t.Errorf("unexpected output config %+v", cfg.Output)
	}
	if cfg.KeepAlive.Transport != TransportWebSocket {
		t.Errorf("expected websocket transport, got %q", cfg.KeepAlive.Transport)
	}
	if cfg.KeepAlive.Backoff.MaxDelay.Duration != 10*time.Second {
		t.Errorf("expected 10s max delay, got %v", cfg.KeepAlive.Backoff.MaxDelay)
	}
	if !cfg.Output.Charset {
		t.Error("defaults should survive a partial document")
	}
}
