// Package config loads the application configuration: a YAML file in
// the user config dir, overridable per-field with environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "jellyread"
	configFileName = "config.yaml"
)

// Config holds the application configuration.
type Config struct {
	Server struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token,omitempty"`
	} `yaml:"server"`

	// CacheDir holds downloaded documents. Empty resolves to the user
	// cache dir.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// ChunkSize overrides the payload upload chunk size. 0 keeps the
	// default.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	Reader struct {
		Theme     string `yaml:"theme"`
		FontSize  int    `yaml:"font_size"`
		Direction string `yaml:"direction"`
	} `yaml:"reader"`

	Inspect struct {
		// Addr enables the inspect HTTP listener when non-empty, e.g.
		// "127.0.0.1:7878".
		Addr string `yaml:"addr,omitempty"`
	} `yaml:"inspect"`

	Browser struct {
		// RemoteURL connects to an external browser instead of
		// launching one.
		RemoteURL string `yaml:"remote_url,omitempty"`
	} `yaml:"browser"`

	LogLevel string `yaml:"log_level"`
}

func defaults() Config {
	var c Config
	c.Server.URL = "http://localhost:8096"
	c.Reader.Theme = "dark"
	c.Reader.FontSize = 100
	c.Reader.Direction = "ltr"
	c.LogLevel = "info"
	return c
}

// Load reads the config file at path; an empty path uses the default
// location, and a missing file yields defaults. Environment variables
// (JELLYREAD_SERVER_URL, JELLYREAD_TOKEN, JELLYREAD_CACHE_DIR,
// JELLYREAD_CHUNK_SIZE, JELLYREAD_INSPECT_ADDR, JELLYREAD_LOG_LEVEL)
// override file values.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		p, err := defaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus environment is a valid configuration.
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cfg.CacheDir = filepath.Join(base, configDirName)
	}
	if cfg.Reader.Direction != "ltr" && cfg.Reader.Direction != "rtl" {
		return cfg, fmt.Errorf("config: reader.direction must be ltr or rtl, got %q", cfg.Reader.Direction)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("JELLYREAD_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("JELLYREAD_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("JELLYREAD_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("JELLYREAD_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChunkSize = n
		}
	}
	if v := os.Getenv("JELLYREAD_INSPECT_ADDR"); v != "" {
		cfg.Inspect.Addr = v
	}
	if v := os.Getenv("JELLYREAD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Save writes the config back to path (or the default location).
func Save(cfg Config, path string) error {
	if path == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func defaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("config: no config dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}
