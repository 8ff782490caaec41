package surface

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/transport"
)

// SimConfig configures an in-process surface.
type SimConfig struct {
	SessionID string

	// Open receives the payload assembled from chunk upload and returns
	// the document's unit count. Required for chunked loading.
	Open func(payload []byte) (units int, err error)

	// Load resolves a LoadDocument URI to a unit count. Required for
	// direct loading.
	Load func(uri string) (units int, err error)

	// Search returns the units matching a query, in any order. Nil means
	// nothing ever matches.
	Search func(query string) []int

	// FirstUnit is the lowest unit number, 1 by default (0 for CBZ).
	FirstUnit int

	// HasFirstUnit marks FirstUnit as deliberately zero.
	HasFirstUnit bool

	Logger *slog.Logger
}

// Sim is an in-process transport.Channel speaking the full surface
// protocol against a plain page model instead of a browser. It exists
// so protocol behavior (chunk reassembly, decode failures, event
// ordering, search) is testable without driving a real renderer.
type Sim struct {
	cfg    SimConfig
	events chan transport.Event

	mu      sync.Mutex
	closed  bool
	chunks  []string
	seq     uint64
	total   int
	current int
}

// NewSim creates a Sim and immediately queues its webviewReady.
func NewSim(cfg SimConfig) *Sim {
	if !cfg.HasFirstUnit && cfg.FirstUnit == 0 {
		cfg.FirstUnit = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Sim{
		cfg:    cfg,
		events: make(chan transport.Event, 64),
	}
	s.emit(transport.WebviewReady{SessionID: cfg.SessionID})
	return s
}

// Events returns the surface event stream.
func (s *Sim) Events() <-chan transport.Event { return s.events }

// Close closes the event stream. Idempotent.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Send executes one command synchronously; any resulting events are
// queued before Send returns, preserving command order.
func (s *Sim) Send(cmd transport.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("surface: sim closed")
	}

	switch c := cmd.(type) {
	case transport.Init:
		s.chunks = nil
		s.seq = c.Seq

	case transport.AppendChunk:
		s.chunks = append(s.chunks, c.Data)

	case transport.Assemble:
		if c.Seq != s.seq {
			return nil
		}
		s.assemble(c.Seq)

	case transport.LoadDocument:
		s.load(c)

	case transport.GotoPage:
		s.gotoUnit(c.Page)

	case transport.NextPage:
		s.gotoUnit(s.current + 1)

	case transport.PrevPage:
		s.gotoUnit(s.current - 1)

	case transport.GotoPercent:
		if s.total > 1 {
			s.gotoUnit(s.cfg.FirstUnit + int(c.Percent*float64(s.total-1)+0.5))
		}

	case transport.GotoAnchor:
		if a, err := anchor.Parse(c.Anchor); err == nil {
			switch v := a.(type) {
			case anchor.Page:
				s.gotoUnit(v.Page)
			case anchor.PageIndex:
				s.gotoUnit(int(v))
			}
		}

	case transport.SearchText:
		var pages []int
		if s.cfg.Search != nil && c.Query != "" {
			pages = s.cfg.Search(c.Query)
		}
		s.emit(transport.SearchResults{SessionID: s.cfg.SessionID, Seq: c.Seq, Pages: pages})

	case transport.SetZoom, transport.SetTheme, transport.SetFontSize,
		transport.AddHighlight, transport.RemoveHighlight:
		// Visual-only; nothing observable in the sim.

	default:
		return fmt.Errorf("surface: sim: unhandled command %T", cmd)
	}
	return nil
}

func (s *Sim) assemble(seq uint64) {
	joined := strings.Join(s.chunks, "")
	s.chunks = nil
	if joined == "" {
		s.fail(seq, "decode", "no data received")
		return
	}
	payload, err := base64.StdEncoding.DecodeString(joined)
	if err != nil {
		s.fail(seq, "decode", "base64 decode failed: "+err.Error())
		return
	}
	if s.cfg.Open == nil {
		s.fail(seq, "", "no document opener configured")
		return
	}
	units, err := s.cfg.Open(payload)
	if err != nil {
		s.fail(seq, "", "open failed: "+err.Error())
		return
	}
	s.ready(seq, units)
}

func (s *Sim) load(c transport.LoadDocument) {
	if s.cfg.Load == nil {
		s.fail(s.seq, "", "no document loader configured")
		return
	}
	units, err := s.cfg.Load(c.URI)
	if err != nil {
		s.fail(s.seq, "decode", "load failed: "+err.Error())
		return
	}
	s.total = units
	s.current = s.cfg.FirstUnit
	if c.StartAnchor != "" {
		if a, err := anchor.Parse(c.StartAnchor); err == nil {
			switch v := a.(type) {
			case anchor.Page:
				if s.inRange(v.Page) {
					s.current = v.Page
				}
			case anchor.PageIndex:
				if s.inRange(int(v)) {
					s.current = int(v)
				}
			}
		}
	}
	s.emit(transport.Ready{
		SessionID:   s.cfg.SessionID,
		Seq:         s.seq,
		TotalUnits:  s.total,
		CurrentUnit: s.current,
	})
}

func (s *Sim) ready(seq uint64, units int) {
	s.total = units
	s.current = s.cfg.FirstUnit
	s.emit(transport.Ready{
		SessionID:   s.cfg.SessionID,
		Seq:         seq,
		TotalUnits:  units,
		CurrentUnit: s.current,
	})
}

// gotoUnit mirrors the renderer pages: out-of-range targets are ignored
// rather than clamped, the host having clamped already.
func (s *Sim) gotoUnit(n int) {
	if !s.inRange(n) || n == s.current {
		return
	}
	s.current = n
	s.emit(transport.PageChange{SessionID: s.cfg.SessionID, Unit: n})
}

func (s *Sim) inRange(n int) bool {
	return s.total > 0 && n >= s.cfg.FirstUnit && n < s.cfg.FirstUnit+s.total
}

func (s *Sim) fail(seq uint64, kind, msg string) {
	s.emit(transport.ErrorEvent{SessionID: s.cfg.SessionID, Seq: seq, Kind: kind, Message: msg})
}

func (s *Sim) emit(ev transport.Event) {
	select {
	case s.events <- ev:
	default:
		// A stalled consumer must not wedge Send.
		s.cfg.Logger.Warn("surface: sim event dropped, consumer stalled",
			"session", s.cfg.SessionID, "type", ev.Type())
	}
}
