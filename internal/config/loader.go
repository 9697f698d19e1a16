package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"trast/internal/common/fsutil"
)

// Config holds runtime parameters for the service. Zero values mean
// "unspecified"; ApplyDefaults fills them before Validate runs.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	Device    string `json:"device" yaml:"device" toml:"device"`
	// Parallel marks the backend as validated for concurrent inference.
	// Off by default: serialized execution is the safe choice.
	Parallel bool `json:"parallel" yaml:"parallel" toml:"parallel"`
	Slots    int  `json:"slots" yaml:"slots" toml:"slots"`
	Backlog  int  `json:"backlog" yaml:"backlog" toml:"backlog"`

	DefaultDeadlineMS int `json:"default_deadline_ms" yaml:"default_deadline_ms" toml:"default_deadline_ms"`
	DrainTimeoutMS    int `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`
	OverloadWindowMS  int `json:"overload_window_ms" yaml:"overload_window_ms" toml:"overload_window_ms"`

	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultAddr           = ":8000"
	DefaultSlots          = 1
	DefaultBacklog        = 32
	DefaultDrainTimeoutMS = 5000
	DefaultOverloadWinMS  = 2000
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Device == "" {
		c.Device = "cpu"
	}
	if c.Slots == 0 {
		c.Slots = DefaultSlots
	}
	if c.Backlog == 0 {
		c.Backlog = DefaultBacklog
	}
	if c.DrainTimeoutMS == 0 {
		c.DrainTimeoutMS = DefaultDrainTimeoutMS
	}
	if c.OverloadWindowMS == 0 {
		c.OverloadWindowMS = DefaultOverloadWinMS
	}
}

// Validate rejects configurations the service cannot start with. A failure
// here is fatal at startup, never a runtime error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelPath) == "" {
		return fmt.Errorf("model_path is required")
	}
	p, err := fsutil.ExpandHome(c.ModelPath)
	if err != nil {
		return fmt.Errorf("model_path: %w", err)
	}
	c.ModelPath = p
	if !fsutil.PathExists(c.ModelPath) {
		return fmt.Errorf("model_path %s does not exist", c.ModelPath)
	}
	if c.Slots < 1 {
		return fmt.Errorf("slots must be >= 1, got %d", c.Slots)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("backlog must be >= 0, got %d", c.Backlog)
	}
	if c.DefaultDeadlineMS < 0 || c.DrainTimeoutMS < 0 || c.OverloadWindowMS < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be >= 0")
	}
	return nil
}

// DefaultDeadline returns the per-job deadline as a duration, zero when
// disabled.
func (c Config) DefaultDeadline() time.Duration {
	return time.Duration(c.DefaultDeadlineMS) * time.Millisecond
}

// DrainTimeout returns the shutdown drain bound.
func (c Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMS) * time.Millisecond
}

// OverloadWindow returns the sustained-overload window.
func (c Config) OverloadWindow() time.Duration {
	return time.Duration(c.OverloadWindowMS) * time.Millisecond
}
