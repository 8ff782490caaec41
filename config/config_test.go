package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "http://localhost:8096" {
		t.Errorf("server url: %q", cfg.Server.URL)
	}
	if cfg.Reader.Theme != "dark" || cfg.Reader.FontSize != 100 || cfg.Reader.Direction != "ltr" {
		t.Errorf("reader defaults: %+v", cfg.Reader)
	}
	if cfg.CacheDir == "" {
		t.Error("cache dir not resolved")
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  url: https://media.example.org
  token: abc123
reader:
  theme: sepia
  font_size: 120
  direction: rtl
chunk_size: 50000
inspect:
  addr: 127.0.0.1:7878
log_level: debug
`
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "https://media.example.org" || cfg.Server.Token != "abc123" {
		t.Errorf("server: %+v", cfg.Server)
	}
	if cfg.Reader.Theme != "sepia" || cfg.Reader.FontSize != 120 || cfg.Reader.Direction != "rtl" {
		t.Errorf("reader: %+v", cfg.Reader)
	}
	if cfg.ChunkSize != 50000 {
		t.Errorf("chunk size: %d", cfg.ChunkSize)
	}
	if cfg.Inspect.Addr != "127.0.0.1:7878" || cfg.LogLevel != "debug" {
		t.Errorf("inspect/log: %q %q", cfg.Inspect.Addr, cfg.LogLevel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("server:\n  url: https://file.example.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JELLYREAD_SERVER_URL", "https://env.example.org")
	t.Setenv("JELLYREAD_CHUNK_SIZE", "12345")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.URL != "https://env.example.org" {
		t.Errorf("env override lost: %q", cfg.Server.URL)
	}
	if cfg.ChunkSize != 12345 {
		t.Errorf("chunk size: %d", cfg.ChunkSize)
	}
}

func TestInvalidDirectionRejected(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("reader:\n  direction: boustrophedon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("invalid direction accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := defaults()
	cfg.Server.Token = "persisted"

	if err := Save(cfg, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Server.Token != "persisted" {
		t.Errorf("token: %q", got.Server.Token)
	}
}
