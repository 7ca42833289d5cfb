// Author: Toluwalase Mebaanne
// Package config loads server and client configuration.
//
// Values are resolved in order: built-in defaults, the config file (if it
// exists), then environment variables. The file format follows the
// extension: .json and .jsonc (comments allowed), .toml, .yaml or .yml.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreJSON   = "json"
)

// ServerConfig configures the hub and the pipe receiver.
type ServerConfig struct {
	// ListenIP and ListenPort are used by the hub only.
	ListenIP   string `json:"listen_ip" toml:"listen_ip" yaml:"listen_ip"`
	ListenPort int    `json:"listen_port" toml:"listen_port" yaml:"listen_port"`

	// BaseDir anchors relative destination paths. Empty means the working
	// directory.
	BaseDir string `json:"base_dir" toml:"base_dir" yaml:"base_dir"`

	// Overwrite is the default for snippets that do not say.
	Overwrite bool `json:"overwrite" toml:"overwrite" yaml:"overwrite"`

	// MaxFrameBytes limits a pipe frame. Zero selects the codec default.
	MaxFrameBytes uint32 `json:"max_frame_bytes" toml:"max_frame_bytes" yaml:"max_frame_bytes"`

	// IgnoreExtensions adds to the built-in sync deny list.
	IgnoreExtensions []string `json:"ignore_extensions" toml:"ignore_extensions" yaml:"ignore_extensions"`

	Store StoreConfig `json:"store" toml:"store" yaml:"store"`

	// NotifyEnabled shows a desktop notification for every saved snippet.
	NotifyEnabled bool `json:"notify_enabled" toml:"notify_enabled" yaml:"notify_enabled"`

	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" toml:"log_file" yaml:"log_file"`
}

// StoreConfig selects where assistant messages go.
type StoreConfig struct {
	Backend     string `json:"backend" toml:"backend" yaml:"backend"`
	SQLitePath  string `json:"sqlite_path" toml:"sqlite_path" yaml:"sqlite_path"`
	MessagesDir string `json:"messages_dir" toml:"messages_dir" yaml:"messages_dir"`
}

// ClientConfig configures the command-line agent.
type ClientConfig struct {
	ServerURL string `json:"server_url" toml:"server_url" yaml:"server_url"`

	// IdleTimeoutMs ends a sync once no file has arrived for this long.
	IdleTimeoutMs int `json:"idle_timeout_ms" toml:"idle_timeout_ms" yaml:"idle_timeout_ms"`

	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenIP:   "127.0.0.1",
		ListenPort: 8765,
		Store: StoreConfig{
			Backend:     StoreSQLite,
			SQLitePath:  "snipbridge.db",
			MessagesDir: filepath.Join("tmp", "messages"),
		},
	}
}

// DefaultClientConfig returns the built-in client defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL:     "ws://127.0.0.1:8765/ws",
		IdleTimeoutMs: 2000,
	}
}

// LoadServerConfig reads server configuration from path. A missing file
// is not an error.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	if ip := os.Getenv("SNIPBRIDGE_LISTEN_IP"); ip != "" {
		cfg.ListenIP = ip
	}
	if port := os.Getenv("SNIPBRIDGE_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("SNIPBRIDGE_PORT: %w", err)
		}
		cfg.ListenPort = n
	}
	if dir := os.Getenv("SNIPBRIDGE_BASE_DIR"); dir != "" {
		cfg.BaseDir = dir
	}
	if backend := os.Getenv("SNIPBRIDGE_STORE"); backend != "" {
		cfg.Store.Backend = backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *ServerConfig) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	case StoreJSON:
		if c.Store.MessagesDir == "" {
			return errors.New("store.messages_dir is required for the json backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, StoreSQLite, StoreJSON)
	}
	return nil
}

// Addr returns the hub listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenIP, c.ListenPort)
}

// LoadClientConfig reads client configuration from path. A missing file
// is not an error.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if url := os.Getenv("SNIPBRIDGE_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if cfg.ServerURL == "" {
		return nil, errors.New("server_url is required (set in config file or SNIPBRIDGE_SERVER_URL env var)")
	}
	if cfg.IdleTimeoutMs <= 0 {
		return nil, fmt.Errorf("idle_timeout_ms must be positive, got %d", cfg.IdleTimeoutMs)
	}
	return cfg, nil
}

// IdleTimeout returns IdleTimeoutMs as a duration.
func (c *ClientConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

func decodeFile(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), v)
	case ".toml":
		return toml.Unmarshal(data, v)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}
