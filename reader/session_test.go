package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adibenedetto117/jellychub/dbopen"
	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/annotations"
	"github.com/adibenedetto117/jellychub/reader/surface"
	"github.com/adibenedetto117/jellychub/reader/transport"
	_ "modernc.org/sqlite"
)

type fakeFetcher struct {
	dir   string
	name  string
	data  []byte
	fails int

	mu    sync.Mutex
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string, progress func(float64)) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if call <= f.fails {
		return "", fmt.Errorf("connection reset")
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	p := filepath.Join(f.dir, f.name)
	if err := os.WriteFile(p, f.data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func watchSnapshots() (func(Snapshot), chan Snapshot) {
	ch := make(chan Snapshot, 256)
	return func(s Snapshot) {
		select {
		case ch <- s:
		default:
		}
	}, ch
}

func waitFor(t *testing.T, ch chan Snapshot, what string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if pred(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func simOpener(pdfPages int, searchFn func(string) []int) func(context.Context, anchor.Kind, string) (transport.Channel, error) {
	return func(ctx context.Context, kind anchor.Kind, sessionID string) (transport.Channel, error) {
		cfg := surface.SimConfig{SessionID: sessionID, Search: searchFn}
		switch kind {
		case anchor.KindPDF:
			cfg.Open = func([]byte) (int, error) { return pdfPages, nil }
		case anchor.KindEPUB:
			cfg.Load = func(string) (int, error) { return pdfPages, nil }
		case anchor.KindCBZ:
			cfg.FirstUnit = 0
			cfg.HasFirstUnit = true
			cfg.Load = func(uri string) (int, error) {
				raw, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
				if err != nil {
					return 0, err
				}
				var urls []string
				if err := json.Unmarshal(raw, &urls); err != nil {
					return 0, err
				}
				return len(urls), nil
			}
		}
		return surface.NewSim(cfg), nil
	}
}

func newTestEngine(t *testing.T, fetcher Fetcher, opener func(context.Context, anchor.Kind, string) (transport.Channel, error)) (*Engine, *annotations.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(annotations.Schema))
	store := annotations.NewStore(db)
	e, err := New(Config{
		Fetcher:     fetcher,
		Store:       store,
		OpenChannel: opener,
		WorkDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, store
}

func TestPDFLifecycle(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "book.pdf", data: []byte("%PDF-1.7 not a real body")}
	e, store := newTestEngine(t, fetcher, simOpener(50, nil))
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "book.pdf", onChange)
	defer s.Close()

	waitFor(t, snaps, "downloading", func(sn Snapshot) bool { return sn.Phase == PhaseDownloading })
	ready := waitFor(t, snaps, "ready", func(sn Snapshot) bool { return sn.Phase == PhaseReady })
	if ready.TotalUnits != 50 || ready.CurrentUnit != 1 {
		t.Errorf("ready snapshot: %+v", ready)
	}
	if ready.Format != FormatPDF {
		t.Errorf("format %q", ready.Format)
	}

	// Out-of-range targets clamp at the host, so the surface lands on
	// the last page instead of ignoring the jump.
	if err := s.GotoPage(75); err != nil {
		t.Fatalf("gotoPage: %v", err)
	}
	waitFor(t, snaps, "clamped page change", func(sn Snapshot) bool { return sn.CurrentUnit == 50 })

	a, pct, ok, err := store.Progress(context.Background(), "doc1")
	if err != nil || !ok {
		t.Fatalf("progress: ok=%v err=%v", ok, err)
	}
	if a.(anchor.Page).Page != 50 || pct != 100 {
		t.Errorf("persisted progress: %v at %.0f%%", a, pct)
	}
}

func TestCBRIsUnsupportedNotError(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "comic.cbr", data: []byte("Rar!\x1a\x07\x00stuff")}
	e, _ := newTestEngine(t, fetcher, simOpener(0, nil))
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "comic.cbr", onChange)
	defer s.Close()

	sn := waitFor(t, snaps, "terminal phase", func(sn Snapshot) bool { return sn.Phase.Terminal() })
	if sn.Phase != PhaseUnsupported {
		t.Fatalf("phase %s, want unsupported", sn.Phase)
	}
	if sn.Message == "" || !strings.Contains(sn.Message, "CBZ") {
		t.Errorf("message should advise conversion: %q", sn.Message)
	}

	if err := s.Retry(context.Background()); err == nil {
		t.Error("unsupported session should not be retryable")
	}
}

func makeCBZ(t *testing.T, pages ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range pages {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		f.Write([]byte("img-" + name))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCBZLifecycle(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "comic.cbz", data: makeCBZ(t, "p1.jpg", "p2.jpg", "p10.jpg")}
	e, _ := newTestEngine(t, fetcher, simOpener(0, nil))
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "comic.cbz", onChange)
	defer s.Close()

	waitFor(t, snaps, "extracting", func(sn Snapshot) bool { return sn.Phase == PhaseExtracting })
	ready := waitFor(t, snaps, "ready", func(sn Snapshot) bool { return sn.Phase == PhaseReady })
	if ready.TotalUnits != 3 {
		t.Errorf("total units %d, want 3", ready.TotalUnits)
	}
	if ready.CurrentUnit != 0 {
		t.Errorf("cbz sessions start at index 0, got %d", ready.CurrentUnit)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	waitFor(t, snaps, "page 1", func(sn Snapshot) bool { return sn.CurrentUnit == 1 })
}

func TestDownloadFailureThenRetry(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "book.pdf", data: []byte("%PDF-1.7"), fails: 1}
	e, _ := newTestEngine(t, fetcher, simOpener(10, nil))
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "book.pdf", onChange)
	defer s.Close()

	sn := waitFor(t, snaps, "error phase", func(sn Snapshot) bool { return sn.Phase.Terminal() })
	if sn.Phase != PhaseError || sn.Message == "" {
		t.Fatalf("snapshot: %+v", sn)
	}

	if err := s.Next(); err == nil {
		t.Error("navigation in error phase should fail")
	}

	if err := s.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	waitFor(t, snaps, "ready after retry", func(sn Snapshot) bool { return sn.Phase == PhaseReady })
}

func TestSearchLifecycle(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "book.pdf", data: []byte("%PDF-1.7")}
	e, _ := newTestEngine(t, fetcher, simOpener(50, func(q string) []int {
		if q == "whale" {
			return []int{9, 2, 5}
		}
		return nil
	}))
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "book.pdf", onChange)
	defer s.Close()
	waitFor(t, snaps, "ready", func(sn Snapshot) bool { return sn.Phase == PhaseReady })

	if err := s.Search("whale"); err != nil {
		t.Fatalf("search: %v", err)
	}
	sn := waitFor(t, snaps, "search results", func(sn Snapshot) bool {
		return sn.Phase == PhaseReady && sn.SearchActive
	})
	if sn.SearchCurrent != 2 {
		t.Errorf("cursor seeds at first match, got %d", sn.SearchCurrent)
	}
	waitFor(t, snaps, "jump to first match", func(sn Snapshot) bool { return sn.CurrentUnit == 2 })

	for _, want := range []int{5, 9, 2} {
		if err := s.NextMatch(); err != nil {
			t.Fatalf("nextMatch: %v", err)
		}
		waitFor(t, snaps, fmt.Sprintf("cursor at %d", want), func(sn Snapshot) bool {
			return sn.SearchCurrent == want && sn.CurrentUnit == want
		})
	}
}

type scriptedChannel struct {
	mu     sync.Mutex
	sent   []transport.Command
	events chan transport.Event
	closed bool
}

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{events: make(chan transport.Event, 64)}
}

func (c *scriptedChannel) Send(cmd transport.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *scriptedChannel) Events() <-chan transport.Event { return c.events }

func (c *scriptedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func TestTwoPhaseReadyAndStaleEvents(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "book.pdf", data: []byte("%PDF-1.7")}
	ch := newScriptedChannel()
	e, _ := newTestEngine(t, fetcher, func(ctx context.Context, kind anchor.Kind, sessionID string) (transport.Channel, error) {
		return ch, nil
	})
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "book.pdf", onChange)
	defer s.Close()

	ch.events <- transport.WebviewReady{SessionID: s.ID()}
	waitFor(t, snaps, "loading", func(sn Snapshot) bool { return sn.Phase == PhaseLoading })
	ch.events <- transport.Ready{
		SessionID:        s.ID(),
		Seq:              1,
		TotalUnits:       100,
		CurrentUnit:      1,
		LocationsPending: true,
	}

	sn := waitFor(t, snaps, "provisional ready", func(sn Snapshot) bool { return sn.Phase == PhaseReady })
	if !sn.LocationsPending || sn.TotalUnits != 100 {
		t.Errorf("provisional snapshot: %+v", sn)
	}

	// An event addressed to a previous surface's session must not move
	// this session.
	ch.events <- transport.PageChange{SessionID: "some-older-session", Unit: 42}
	ch.events <- transport.LocationsReady{SessionID: s.ID(), TotalUnits: 312}

	sn = waitFor(t, snaps, "final pagination", func(sn Snapshot) bool { return !sn.LocationsPending })
	if sn.TotalUnits != 312 {
		t.Errorf("upgraded total %d, want 312", sn.TotalUnits)
	}
	if sn.CurrentUnit == 42 {
		t.Error("stale page change applied")
	}
}

func TestDecodeErrorEndsInErrorPhase(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "book.pdf", data: []byte("%PDF-1.7")}
	ch := newScriptedChannel()
	e, _ := newTestEngine(t, fetcher, func(ctx context.Context, kind anchor.Kind, sessionID string) (transport.Channel, error) {
		return ch, nil
	})
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "book.pdf", onChange)
	defer s.Close()

	ch.events <- transport.WebviewReady{SessionID: s.ID()}
	waitFor(t, snaps, "loading", func(sn Snapshot) bool { return sn.Phase == PhaseLoading })
	ch.events <- transport.ErrorEvent{SessionID: s.ID(), Seq: 1, Kind: "decode", Message: "no data received"}

	sn := waitFor(t, snaps, "error phase", func(sn Snapshot) bool { return sn.Phase.Terminal() })
	if sn.Phase != PhaseError {
		t.Fatalf("phase %s, want error", sn.Phase)
	}
	if !strings.Contains(sn.Message, "no data received") {
		t.Errorf("message: %q", sn.Message)
	}
}

func TestIntentsAfterCloseError(t *testing.T) {
	fetcher := &fakeFetcher{dir: t.TempDir(), name: "book.pdf", data: []byte("%PDF-1.7 stub")}
	e, _ := newTestEngine(t, fetcher, simOpener(10, nil))
	onChange, snaps := watchSnapshots()

	s := e.Open(context.Background(), "doc1", "book.pdf", onChange)
	waitFor(t, snaps, "ready", func(sn Snapshot) bool { return sn.Phase == PhaseReady })
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The surface is gone but the phase was ready; intents must report
	// the closed session instead of reaching a torn-down channel.
	if err := s.SetTheme("sepia"); err == nil {
		t.Error("SetTheme after close did not fail")
	}
	if err := s.SetFontSize(120); err == nil {
		t.Error("SetFontSize after close did not fail")
	}
	if err := s.Next(); err == nil {
		t.Error("Next after close did not fail")
	}
	if err := s.Search("ghost"); err == nil {
		t.Error("Search after close did not fail")
	}
}
