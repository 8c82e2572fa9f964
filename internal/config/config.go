package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/environ"
	"github.com/harshul/bbdev-cli/internal/history"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the current directory
const DefaultFileName = ".bbdev.yaml"

// Config is the contents of .bbdev.yaml. Durations are in milliseconds.
type Config struct {
	BbdevPath   string                        `yaml:"bbdev_path"`
	Workspace   string                        `yaml:"workspace,omitempty"`
	Timeout     int64                         `yaml:"timeout"`
	Server      ServerConfig                  `yaml:"server"`
	HistorySize int                           `yaml:"history_size"`
	EnvFile     string                        `yaml:"env_file,omitempty"`
	Env         map[string]string             `yaml:"env,omitempty"`
	ExtraPaths  []string                      `yaml:"extra_paths,omitempty"`
	LogLevel    string                        `yaml:"log_level"`
	Operations  []catalog.OperationDefinition `yaml:"operations,omitempty"`

	// dir is where the file was loaded from; relative paths resolve against it
	dir string
}

// ServerConfig holds the agent server settings
type ServerConfig struct {
	DefaultPort  int   `yaml:"default_port"`
	PortAttempts int   `yaml:"port_attempts"`
	StartTimeout int64 `yaml:"start_timeout"`
	StopTimeout  int64 `yaml:"stop_timeout"`
	KillGrace    int64 `yaml:"kill_grace"`
}

// Default returns the configuration used when no file exists
func Default() Config {
	return Config{
		BbdevPath: "bbdev",
		Timeout:   300000,
		Server: ServerConfig{
			DefaultPort:  8080,
			PortAttempts: 100,
			StartTimeout: 30000,
			StopTimeout:  10000,
			KillGrace:    2000,
		},
		HistorySize: history.DefaultSize,
		LogLevel:    "info",
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// a malformed or invalid one is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	abs, err := filepath.Abs(path)
	if err != nil {
		return cfg, err
	}
	cfg.dir = filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Write writes the config as a YAML file
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.BbdevPath == "" {
		return errors.New("bbdev_path must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative (got %d)", c.Timeout)
	}
	if p := c.Server.DefaultPort; p < 1 || p > 65535 {
		return fmt.Errorf("server.default_port must be within 1..65535 (got %d)", p)
	}
	if c.Server.PortAttempts < 1 {
		return fmt.Errorf("server.port_attempts must be at least 1 (got %d)", c.Server.PortAttempts)
	}
	for name, v := range map[string]int64{
		"server.start_timeout": c.Server.StartTimeout,
		"server.stop_timeout":  c.Server.StopTimeout,
		"server.kill_grace":    c.Server.KillGrace,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative (got %d)", name, v)
		}
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must not be negative (got %d)", c.HistorySize)
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	for _, op := range c.Operations {
		if err := op.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TimeoutDuration is the default operation timeout
func (c Config) TimeoutDuration() time.Duration {
	return millis(c.Timeout)
}

func (s ServerConfig) StartTimeoutDuration() time.Duration { return millis(s.StartTimeout) }
func (s ServerConfig) StopTimeoutDuration() time.Duration  { return millis(s.StopTimeout) }
func (s ServerConfig) KillGraceDuration() time.Duration    { return millis(s.KillGrace) }

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// WorkspaceDir resolves the workspace, falling back to the current directory
func (c Config) WorkspaceDir() (string, error) {
	if c.Workspace == "" {
		return os.Getwd()
	}
	return filepath.Abs(c.resolve(c.Workspace))
}

// Catalog returns the built-in operations with the configured ones merged in
func (c Config) Catalog() (*catalog.Catalog, error) {
	defs := append(catalog.Builtin(), c.Operations...)
	return catalog.New(defs...)
}

// Environment builds the subprocess environment overlay
func (c Config) Environment() (map[string]string, error) {
	envFile := ""
	if c.EnvFile != "" {
		envFile = c.resolve(c.EnvFile)
	}
	paths := make([]string, 0, len(c.ExtraPaths))
	for _, p := range c.ExtraPaths {
		paths = append(paths, c.resolve(p))
	}
	return environ.Overlay(envFile, c.Env, paths)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
