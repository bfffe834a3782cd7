package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const FileName = "lazyload.config.toml"

var ErrInvalidConfig = errors.New("config: invalid configuration")

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data over the defaults. ext selects the format: ".yaml",
// ".yml" and ".json" go through the YAML decoder, anything else is TOML.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := DefaultConfig()

	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".json":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes cfg as TOML to path.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Output.CrossOriginLoading {
	case CrossOriginNone, CrossOriginAnonymous, CrossOriginUseCredentials:
	default:
		return fmt.Errorf("%w: crossOriginLoading %q (must be anonymous or use-credentials)", ErrInvalidConfig, c.Output.CrossOriginLoading)
	}

	if c.Output.ChunkLoadTimeout < 0 {
		return fmt.Errorf("%w: chunkLoadTimeout must not be negative", ErrInvalidConfig)
	}
	if c.Output.ChunkLoadTimeout == 0 {
		c.Output.ChunkLoadTimeout = 120000
	}

	switch c.KeepAlive.Transport {
	case TransportAuto, TransportEventSource, TransportWebSocket:
	case "":
		c.KeepAlive.Transport = TransportAuto
	default:
		return fmt.Errorf("%w: keepAlive.transport %q", ErrInvalidConfig, c.KeepAlive.Transport)
	}

	b := &c.KeepAlive.Backoff
	if b.Multiplier == 0 {
		b.Multiplier = 2
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("%w: keepAlive.backoff.multiplier must be >= 1", ErrInvalidConfig)
	}
	if b.InitialDelay.Duration <= 0 {
		b.InitialDelay.Duration = DefaultConfig().KeepAlive.Backoff.InitialDelay.Duration
	}
	if b.MaxDelay.Duration > 0 && b.MaxDelay.Duration < b.InitialDelay.Duration {
		return fmt.Errorf("%w: keepAlive.backoff.maxDelay below initialDelay", ErrInvalidConfig)
	}

	if c.Server.Port == 0 {
		c.Server.Port = 4322
	}

	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}

	if c.Server.Prefix == "" {
		c.Server.Prefix = "/lazy-compilation-using-"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return nil
}

// Addr is the listen address of the development keep-alive endpoint.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
