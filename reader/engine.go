package reader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/annotations"
	"github.com/adibenedetto117/jellychub/reader/chunker"
	"github.com/adibenedetto117/jellychub/reader/nav"
	"github.com/adibenedetto117/jellychub/reader/pdftext"
	"github.com/adibenedetto117/jellychub/reader/search"
	"github.com/adibenedetto117/jellychub/reader/transport"
)

// Config wires an Engine to its collaborators.
type Config struct {
	// Fetcher resolves document ids to local files.
	Fetcher Fetcher

	// Store persists bookmarks, highlights and reading progress. Nil
	// disables persistence.
	Store *annotations.Store

	// OpenChannel creates the rendering surface for a session. One
	// surface per session; a document switch means a fresh surface.
	OpenChannel func(ctx context.Context, kind anchor.Kind, sessionID string) (transport.Channel, error)

	// ChunkSize overrides the upload chunk size. 0 uses the default.
	ChunkSize int

	// WorkDir receives extracted CBZ pages and prepared EPUB markup.
	// Empty uses the OS temp dir.
	WorkDir string

	// Direction is the preferred reading direction; an EPUB declaring
	// rtl page progression overrides it.
	Direction nav.Direction

	Logger *slog.Logger
}

func (c *Config) defaults() error {
	if c.Fetcher == nil {
		return fmt.Errorf("reader: Config.Fetcher is required")
	}
	if c.OpenChannel == nil {
		return fmt.Errorf("reader: Config.OpenChannel is required")
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.Direction == "" {
		c.Direction = nav.LTR
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Engine opens document sessions.
type Engine struct {
	cfg Config
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Open starts a session for the given document. It returns immediately
// in the downloading phase; acquisition and loading run in the
// background, with every state change delivered to onChange (which may
// be nil). name is the document's filename, used for format detection.
//
// onChange runs on the session's internal goroutines and must not call
// back into the session; hand the snapshot off and return.
func (e *Engine) Open(ctx context.Context, documentID, name string, onChange func(Snapshot)) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:           uuid.NewString(),
		documentID:   documentID,
		name:         name,
		cfg:          e.cfg,
		onChange:     onChange,
		phase:        PhaseDownloading,
		direction:    e.cfg.Direction,
		webviewReady: make(chan struct{}),
		cancel:       cancel,
	}
	s.log = e.cfg.Logger.With("session", s.id, "document", documentID)
	if onChange != nil {
		onChange(s.Snapshot())
	}

	go s.acquire(ctx)
	return s
}

// Session is one open document: its lifecycle state, its rendering
// surface and the controllers in front of it.
type Session struct {
	id         string
	documentID string
	name       string
	cfg        Config
	log        *slog.Logger
	onChange   func(Snapshot)
	cancel     context.CancelFunc

	mu               sync.Mutex
	phase            Phase
	message          string
	format           Format
	progress         float64
	totalUnits       int
	currentUnit      int
	locationsPending bool
	direction        nav.Direction
	lastAnchor       anchor.Anchor
	uploadSeq        uint64
	pdfText          *pdftext.Document

	ch      transport.Channel
	nav     *nav.Controller
	search  *search.Controller
	pumping sync.WaitGroup

	webviewReady chan struct{}
	wvOnce       sync.Once
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// DocumentID returns the id of the open document.
func (s *Session) DocumentID() string { return s.documentID }

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		DocumentID:       s.documentID,
		Format:           s.format,
		Phase:            s.phase,
		Message:          s.message,
		Progress:         s.progress,
		TotalUnits:       s.totalUnits,
		CurrentUnit:      s.currentUnit,
		LocationsPending: s.locationsPending,
		Direction:        s.direction,
	}
	if s.search != nil {
		pages, current, active := s.search.Results()
		snap.SearchPages = pages
		snap.SearchCurrent = current
		snap.SearchActive = active
	}
	return snap
}

func (s *Session) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}

// Close tears the session down: pump stopped, surface closed. Safe to
// call in any phase, any number of times.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	ch := s.ch
	s.ch = nil
	s.mu.Unlock()
	cancel()
	if ch != nil {
		if err := ch.Close(); err != nil {
			return fmt.Errorf("reader: close surface: %w", err)
		}
	}
	s.pumping.Wait()
	return nil
}
