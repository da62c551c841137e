// Package config handles configuration parsing for shell-bridge.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/acolita/shell-bridge/internal/logging"
	"github.com/acolita/shell-bridge/internal/ports"
)

// EnvPrefix prefixes every environment override, e.g. SHELL_BRIDGE_ENDPOINT_URL.
const EnvPrefix = "SHELL_BRIDGE"

// PathEnv names the environment variable holding the config file path.
const PathEnv = EnvPrefix + "_CONFIG"

// DefaultConfigPath returns the config file path: $SHELL_BRIDGE_CONFIG if set,
// else $XDG_CONFIG_HOME/shell-bridge/config.yaml or ~/.config/shell-bridge/config.yaml
func DefaultConfigPath() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shell-bridge", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Shell     ShellConfig     `yaml:"shell"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Logging   LoggingConfig   `yaml:"logging"`
	Recording RecordingConfig `yaml:"recording"`
}

// EndpointConfig defines the remote websocket endpoint.
type EndpointConfig struct {
	URL          string        `yaml:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	ReadLimit    int64         `yaml:"read_limit" split_words:"true"` // max inbound frame size in bytes
}

// ShellConfig defines the spawned shell and its terminal.
type ShellConfig struct {
	Path string `yaml:"path"` // shell binary (overrides detection)
	Term string `yaml:"term"` // TERM for the child
	Rows uint16 `yaml:"rows"`
	Cols uint16 `yaml:"cols"`
	Dir  string `yaml:"dir"` // initial working directory
}

// BridgeConfig tunes the output path.
type BridgeConfig struct {
	QueueSize     int `yaml:"queue_size" split_words:"true"`      // pending output chunks before the pump blocks
	ReadChunkSize int `yaml:"read_chunk_size" split_words:"true"` // bytes per PTY read
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// RecordingConfig defines session recording settings.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"` // enable session recording
	Path    string `yaml:"path"`    // directory to store recordings
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			URL:          "ws://localhost:8080/ws",
			DialTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			ReadLimit:    1 << 20,
		},
		Shell: ShellConfig{
			Term: "xterm-256color",
			Rows: 24,
			Cols: 80,
		},
		Bridge: BridgeConfig{
			QueueSize:     100,
			ReadChunkSize: 1024,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return parse(data)
}

// parse decodes YAML onto the defaults.
func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays SHELL_BRIDGE_* environment variables. Unset variables
// leave the current values alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return fmt.Errorf("endpoint.url is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("endpoint.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint.url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint.url: missing host")
	}

	if c.Shell.Rows == 0 || c.Shell.Cols == 0 {
		return fmt.Errorf("shell geometry must be non-zero, got %dx%d", c.Shell.Rows, c.Shell.Cols)
	}
	if c.Bridge.QueueSize < 1 {
		return fmt.Errorf("bridge.queue_size must be at least 1, got %d", c.Bridge.QueueSize)
	}
	// A chunk must hold at least one full UTF-8 rune.
	if c.Bridge.ReadChunkSize < 4 {
		return fmt.Errorf("bridge.read_chunk_size must be at least 4, got %d", c.Bridge.ReadChunkSize)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Recording.Enabled && c.Recording.Path == "" {
		return fmt.Errorf("recording.path is required when recording is enabled")
	}

	return nil
}

// Resolve loads the file at path, overlays the environment and validates
// the result. This is the configuration the agent runs with.
func Resolve(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg, err := Load(path, fsys...)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// finish overlays the environment and validates.
func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
