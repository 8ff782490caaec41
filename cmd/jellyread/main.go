// Command jellyread reads EPUB, PDF and CBZ documents from a media
// server in the terminal. Rendering happens in a sandboxed browser
// surface; the TUI is the remote control in front of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/adibenedetto117/jellychub/config"
	"github.com/adibenedetto117/jellychub/dbopen"
	"github.com/adibenedetto117/jellychub/fetch"
	"github.com/adibenedetto117/jellychub/inspect"
	"github.com/adibenedetto117/jellychub/reader"
	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/annotations"
	"github.com/adibenedetto117/jellychub/reader/nav"
	"github.com/adibenedetto117/jellychub/reader/surface"
	"github.com/adibenedetto117/jellychub/reader/transport"
	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: user config dir)")
	docID := flag.String("doc", "", "document id to open")
	docName := flag.String("name", "", "document filename, used for format detection")
	flag.Parse()

	if *docID == "" || *docName == "" {
		fmt.Fprintln(os.Stderr, "usage: jellyread -doc <id> -name <filename> [-config <path>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jellyread: %v\n", err)
		os.Exit(1)
	}

	logger, logClose, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jellyread: %v\n", err)
		os.Exit(1)
	}
	defer logClose()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, *docID, *docName); err != nil {
		logger.Error("jellyread: fatal", "error", err)
		fmt.Fprintf(os.Stderr, "jellyread: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, docID, docName string) error {
	db, err := dbopen.Open(filepath.Join(cfg.CacheDir, "annotations.db"),
		dbopen.WithMkdirAll(), dbopen.WithSchema(annotations.Schema))
	if err != nil {
		return err
	}
	defer db.Close()
	store := annotations.NewStore(db)

	fetcher, err := fetch.New(fetch.Config{
		BaseURL:  cfg.Server.URL,
		Token:    cfg.Server.Token,
		CacheDir: filepath.Join(cfg.CacheDir, "documents"),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	mgr := surface.NewManager(surface.Config{
		RemoteURL: cfg.Browser.RemoteURL,
		Logger:    logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	direction := nav.LTR
	if cfg.Reader.Direction == "rtl" {
		direction = nav.RTL
	}
	engine, err := reader.New(reader.Config{
		Fetcher: fetcher,
		Store:   store,
		OpenChannel: func(ctx context.Context, kind anchor.Kind, sessionID string) (transport.Channel, error) {
			return surface.Open(ctx, mgr, kind, sessionID, logger)
		},
		ChunkSize: cfg.ChunkSize,
		WorkDir:   filepath.Join(cfg.CacheDir, "work"),
		Direction: direction,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	registry := newRegistry()
	if cfg.Inspect.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.Inspect.Addr,
			Handler: inspect.NewService(registry, store, logger).Handler(),
		}
		go func() {
			logger.Info("inspect: listening", "addr", cfg.Inspect.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("inspect: listener failed", "error", err)
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutCancel()
			srv.Shutdown(shutCtx)
		}()
	}

	m := newModel(ctx, cfg, docName)
	p := tea.NewProgram(m, tea.WithAltScreen())

	session := engine.Open(ctx, docID, docName, func(snap reader.Snapshot) {
		p.Send(snapshotMsg(snap))
	})
	registry.add(session)
	defer func() {
		registry.remove(session.ID())
		session.Close()
	}()
	m.session = session

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("jellyread: tui: %w", err)
	}
	return nil
}

// newLogger builds the JSON logger. The TUI owns the terminal, so logs
// go to a file in the cache dir.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("jellyread: log dir: %w", err)
	}
	path := filepath.Join(cfg.CacheDir, "jellyread.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("jellyread: open log: %w", err)
	}

	var w io.Writer = f
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	return logger, func() { f.Close() }, nil
}
