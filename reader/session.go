package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/annotations"
	"github.com/adibenedetto117/jellychub/reader/cbzfile"
	"github.com/adibenedetto117/jellychub/reader/chunker"
	"github.com/adibenedetto117/jellychub/reader/epubfile"
	"github.com/adibenedetto117/jellychub/reader/nav"
	"github.com/adibenedetto117/jellychub/reader/pdftext"
	"github.com/adibenedetto117/jellychub/reader/search"
	"github.com/adibenedetto117/jellychub/reader/transport"
)

const webviewReadyTimeout = 30 * time.Second

// acquire runs the download→load sequence for one attempt. All failures
// land in a terminal phase instead of escaping; the session object
// stays usable for inspection and, after error, for Retry.
func (s *Session) acquire(ctx context.Context) {
	path, err := s.cfg.Fetcher.Fetch(ctx, s.documentID, func(f float64) {
		s.mu.Lock()
		s.progress = f
		s.notifyLocked()
		s.mu.Unlock()
	})
	if err != nil {
		s.fail("download failed: " + err.Error())
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.fail("read downloaded file: " + err.Error())
		return
	}

	format, err := DetectFormat(s.name, data)
	if err != nil {
		var unsup ErrUnsupported
		if errors.As(err, &unsup) {
			s.unsupported(unsup.Message)
		} else {
			s.fail(err.Error())
		}
		return
	}

	s.mu.Lock()
	s.format = format
	s.mu.Unlock()

	ch, err := s.cfg.OpenChannel(ctx, format.Kind(), s.id)
	if err != nil {
		s.fail("open surface: " + err.Error())
		return
	}
	s.attach(ctx, ch, format)

	s.mu.Lock()
	wv := s.webviewReady
	s.mu.Unlock()
	select {
	case <-wv:
	case <-ctx.Done():
		return
	case <-time.After(webviewReadyTimeout):
		s.fail("surface never became ready")
		return
	}

	switch format {
	case FormatPDF:
		err = s.loadPDF(ctx, data)
	case FormatEPUB:
		err = s.loadEPUB(ctx, data)
	case FormatCBZ:
		err = s.loadCBZ(ctx, data)
	}
	if err != nil {
		var unsup ErrUnsupported
		if errors.As(err, &unsup) {
			s.unsupported(unsup.Message)
		} else {
			s.fail(err.Error())
		}
	}
}

// attach installs the surface channel and its controllers and starts
// the event pump.
func (s *Session) attach(ctx context.Context, ch transport.Channel, format Format) {
	s.mu.Lock()
	s.ch = ch
	firstUnit := 1
	if format == FormatCBZ {
		firstUnit = 0
	}
	s.nav = nav.New(nav.Config{
		Send:      ch.Send,
		Total:     func() int { s.mu.Lock(); defer s.mu.Unlock(); return s.totalUnits },
		Current:   func() int { s.mu.Lock(); defer s.mu.Unlock(); return s.currentUnit },
		Direction: func() nav.Direction { s.mu.Lock(); defer s.mu.Unlock(); return s.direction },
		FirstUnit: firstUnit,
		Reflow:    format == FormatEPUB,
		Kind:      format.Kind(),
	})
	s.search = search.New(ch.Send, func(page int) error { return s.nav.GotoPage(page) })
	s.mu.Unlock()

	s.pumping.Add(1)
	go s.pump(ctx, ch)
}

func (s *Session) loadPDF(ctx context.Context, data []byte) error {
	// Best-effort host-side parse. It feeds host-side text access and
	// flags broken files early, but the surface renderer has the final
	// say on what it can open, so a parse failure only logs.
	if doc, err := pdftext.LoadBytes(data); err != nil {
		s.log.Warn("host-side pdf parse failed", "error", err)
	} else if doc.PageCount() == 0 {
		return fmt.Errorf("PDF has no pages")
	} else {
		s.mu.Lock()
		s.pdfText = doc
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.uploadSeq++
	seq := s.uploadSeq
	ch := s.ch
	s.mu.Unlock()
	s.setPhase(PhaseLoading)
	if ch == nil {
		return fmt.Errorf("session closed")
	}
	if err := chunker.Upload(ch, data, chunker.Options{ChunkSize: s.cfg.ChunkSize, Seq: seq}); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

func (s *Session) loadEPUB(ctx context.Context, data []byte) error {
	book, err := epubfile.Open(data)
	if err != nil {
		return fmt.Errorf("invalid EPUB: %w", err)
	}
	if book.RTL {
		s.mu.Lock()
		s.direction = nav.RTL
		s.mu.Unlock()
	}

	// The surface gets one continuous document: every spine entry,
	// sanitised, in reading order.
	var sb strings.Builder
	for i := range book.Spine {
		html, err := book.ChapterHTML(i)
		if err != nil {
			return fmt.Errorf("chapter %d: %w", i, err)
		}
		sb.WriteString(html)
		sb.WriteByte('\n')
	}

	dir, err := s.workDir()
	if err != nil {
		return err
	}
	p := filepath.Join(dir, "book.html")
	if err := os.WriteFile(p, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write prepared book: %w", err)
	}

	s.setPhase(PhaseLoading)
	return s.sendLoad(ctx, "file://"+p)
}

func (s *Session) loadCBZ(ctx context.Context, data []byte) error {
	s.setPhase(PhaseExtracting)
	arch, err := cbzfile.Open(s.name, data, func(f float64) {
		s.mu.Lock()
		s.progress = f
		s.notifyLocked()
		s.mu.Unlock()
	})
	if errors.Is(err, cbzfile.ErrRAR) {
		return ErrUnsupported{Message: err.Error()}
	}
	if err != nil {
		return err
	}

	dir, err := s.workDir()
	if err != nil {
		return err
	}
	urls := make([]string, len(arch.Pages))
	for _, pg := range arch.Pages {
		p := filepath.Join(dir, fmt.Sprintf("%05d%s", pg.Index, filepath.Ext(pg.Name)))
		if err := os.WriteFile(p, pg.Data, 0o644); err != nil {
			return fmt.Errorf("write page %d: %w", pg.Index, err)
		}
		urls[pg.Index] = "file://" + p
	}
	manifest, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	mp := filepath.Join(dir, "pages.json")
	if err := os.WriteFile(mp, manifest, 0o644); err != nil {
		return fmt.Errorf("write page manifest: %w", err)
	}

	s.setPhase(PhaseLoading)
	return s.sendLoad(ctx, "file://"+mp)
}

func (s *Session) workDir() (string, error) {
	dir := filepath.Join(s.cfg.WorkDir, s.id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("work dir: %w", err)
	}
	return dir, nil
}

func (s *Session) sendLoad(ctx context.Context, uri string) error {
	start := ""
	if s.cfg.Store != nil {
		if a, _, ok, err := s.cfg.Store.Progress(ctx, s.documentID); err == nil && ok && a.Kind() == s.format.Kind() {
			start = a.String()
		}
	}
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("session closed")
	}
	if err := ch.Send(transport.LoadDocument{URI: uri, StartAnchor: start}); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// pump consumes surface events until the channel closes. Events tagged
// with a different session id are replies meant for a surface this
// session no longer owns; they are dropped.
func (s *Session) pump(ctx context.Context, ch transport.Channel) {
	defer s.pumping.Done()
	for ev := range ch.Events() {
		if sid := ev.Session(); sid != "" && sid != s.id {
			s.log.Debug("dropping stale surface event", "type", ev.Type(), "from", sid)
			continue
		}
		s.handle(ctx, ev)
	}
}

func (s *Session) handle(ctx context.Context, ev transport.Event) {
	switch e := ev.(type) {
	case transport.WebviewReady:
		s.wvOnce.Do(func() { close(s.webviewReady) })

	case transport.Ready:
		s.mu.Lock()
		if e.Seq != 0 && e.Seq != s.uploadSeq {
			s.mu.Unlock()
			s.log.Debug("dropping ready for superseded upload", "seq", e.Seq)
			return
		}
		s.phase = PhaseReady
		s.totalUnits = e.TotalUnits
		s.currentUnit = e.CurrentUnit
		s.locationsPending = e.LocationsPending
		s.notifyLocked()
		s.mu.Unlock()
		s.restorePosition(ctx)

	case transport.LocationsReady:
		s.mu.Lock()
		s.totalUnits = e.TotalUnits
		s.locationsPending = false
		s.notifyLocked()
		s.mu.Unlock()

	case transport.PageChange:
		s.mu.Lock()
		s.currentUnit = e.Unit
		a := s.positionAnchorLocked()
		pct := s.percentLocked()
		s.notifyLocked()
		s.mu.Unlock()
		s.persistProgress(ctx, a, pct)

	case transport.Relocated:
		s.mu.Lock()
		var a anchor.Anchor
		if e.Anchor != "" {
			a = anchor.CFI(e.Anchor)
		}
		s.lastAnchor = a
		s.notifyLocked()
		s.mu.Unlock()
		s.persistProgress(ctx, a, e.Percent)

	case transport.SearchResults:
		s.mu.Lock()
		ctrl := s.search
		if s.phase == PhaseSearching {
			s.phase = PhaseReady
		}
		s.mu.Unlock()
		if ctrl != nil {
			if err := ctrl.HandleResults(e); err != nil {
				s.log.Warn("search navigation failed", "error", err)
			}
		}
		s.mu.Lock()
		s.notifyLocked()
		s.mu.Unlock()

	case transport.ErrorEvent:
		s.mu.Lock()
		if e.Seq != 0 && e.Seq != s.uploadSeq {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		if e.Kind == "decode" {
			s.fail("surface could not decode the document: " + e.Message)
		} else {
			s.fail("surface failed to render: " + e.Message)
		}

	case transport.DebugEvent:
		s.log.Debug("surface", "message", e.Message)
	}
}

// restorePosition jumps a freshly ready paginated session back to the
// stored reading position. EPUB restores through the load start anchor
// instead.
func (s *Session) restorePosition(ctx context.Context) {
	s.mu.Lock()
	format := s.format
	n := s.nav
	s.mu.Unlock()
	if s.cfg.Store == nil || n == nil || format == FormatEPUB {
		return
	}
	a, _, ok, err := s.cfg.Store.Progress(ctx, s.documentID)
	if err != nil || !ok || a.Kind() != format.Kind() {
		return
	}
	if err := n.GotoAnchor(a); err != nil {
		s.log.Warn("restore position failed", "error", err)
	}
}

func (s *Session) positionAnchorLocked() anchor.Anchor {
	switch s.format {
	case FormatPDF:
		return anchor.Page{Page: s.currentUnit}
	case FormatCBZ:
		return anchor.PageIndex(s.currentUnit)
	}
	return s.lastAnchor
}

func (s *Session) percentLocked() float64 {
	if s.totalUnits <= 1 {
		return 0
	}
	first := 1
	if s.format == FormatCBZ {
		first = 0
	}
	return 100 * float64(s.currentUnit-first) / float64(s.totalUnits-1)
}

func (s *Session) persistProgress(ctx context.Context, a anchor.Anchor, percent float64) {
	if s.cfg.Store == nil || a == nil {
		return
	}
	if err := s.cfg.Store.SaveProgress(ctx, s.documentID, a, percent); err != nil {
		s.log.Warn("persist progress failed", "error", err)
	}
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Session) fail(msg string) {
	s.mu.Lock()
	if s.phase == PhaseUnsupported {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseError
	s.message = msg
	s.notifyLocked()
	s.mu.Unlock()
	s.log.Error("session failed", "message", msg)
}

func (s *Session) unsupported(msg string) {
	s.mu.Lock()
	s.phase = PhaseUnsupported
	s.message = msg
	s.notifyLocked()
	s.mu.Unlock()
	s.log.Info("unsupported document", "message", msg)
}

// Retry restarts a session that ended in the error phase: fresh
// download, fresh surface. Unsupported documents are not retryable; no
// amount of retrying turns a CBR into a CBZ.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseUnsupported:
		s.mu.Unlock()
		return fmt.Errorf("reader: %s", s.message)
	case PhaseError:
	default:
		s.mu.Unlock()
		return fmt.Errorf("reader: cannot retry a session in phase %s", s.phase)
	}

	old := s.ch
	s.ch = nil
	s.nav = nil
	s.search = nil
	s.phase = PhaseDownloading
	s.message = ""
	s.progress = 0
	s.totalUnits = 0
	s.currentUnit = 0
	s.locationsPending = false
	s.pdfText = nil
	s.webviewReady = make(chan struct{})
	s.wvOnce = sync.Once{}
	s.notifyLocked()
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.pumping.Wait()

	s.mu.Lock()
	s.cancel()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	go s.acquire(ctx)
	return nil
}

// intent gates interactive calls: the session must be ready (or mid
// search) with its surface still attached. Collaborators are
// snapshotted under the lock because Close and Retry swap them
// concurrently.
func (s *Session) intent() (*nav.Controller, *search.Controller, transport.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReady && s.phase != PhaseSearching {
		return nil, nil, nil, fmt.Errorf("reader: session is %s", s.phase)
	}
	if s.ch == nil || s.nav == nil || s.search == nil {
		return nil, nil, nil, fmt.Errorf("reader: session is closed")
	}
	return s.nav, s.search, s.ch, nil
}

// Next advances one unit in reading order.
func (s *Session) Next() error {
	nv, _, _, err := s.intent()
	if err != nil {
		return err
	}
	return nv.Next()
}

// Previous retreats one unit in reading order.
func (s *Session) Previous() error {
	nv, _, _, err := s.intent()
	if err != nil {
		return err
	}
	return nv.Previous()
}

// GotoPage navigates to an absolute unit, clamped to the document.
func (s *Session) GotoPage(n int) error {
	nv, _, _, err := s.intent()
	if err != nil {
		return err
	}
	return nv.GotoPage(n)
}

// GotoPercent navigates to a normalized position in [0,1].
func (s *Session) GotoPercent(p float64) error {
	nv, _, _, err := s.intent()
	if err != nil {
		return err
	}
	return nv.GotoPercent(p)
}

// GotoAnchor resolves a stored anchor into navigation.
func (s *Session) GotoAnchor(a anchor.Anchor) error {
	nv, _, _, err := s.intent()
	if err != nil {
		return err
	}
	return nv.GotoAnchor(a)
}

// Search starts a text search. The session moves to searching until
// results arrive; an empty query clears the active search.
func (s *Session) Search(query string) error {
	_, ctrl, _, err := s.intent()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if query != "" {
		s.phase = PhaseSearching
	}
	s.notifyLocked()
	s.mu.Unlock()
	return ctrl.Search(query)
}

// NextMatch moves the search cursor forward, wrapping past the end.
func (s *Session) NextMatch() error {
	_, ctrl, _, err := s.intent()
	if err != nil {
		return err
	}
	return ctrl.Next()
}

// PrevMatch moves the search cursor backward, wrapping past the start.
func (s *Session) PrevMatch() error {
	_, ctrl, _, err := s.intent()
	if err != nil {
		return err
	}
	return ctrl.Previous()
}

// SetTheme switches the surface theme.
func (s *Session) SetTheme(theme string) error {
	_, _, ch, err := s.intent()
	if err != nil {
		return err
	}
	return ch.Send(transport.SetTheme{Theme: theme})
}

// SetFontSize adjusts the reflowable font size percentage. Stored
// anchors survive the reflow; only the visual layout moves.
func (s *Session) SetFontSize(percent int) error {
	_, _, ch, err := s.intent()
	if err != nil {
		return err
	}
	return ch.Send(transport.SetFontSize{Percent: percent})
}

// SetZoom adjusts the fixed-layout zoom factor.
func (s *Session) SetZoom(zoom float64) error {
	_, _, ch, err := s.intent()
	if err != nil {
		return err
	}
	return ch.Send(transport.SetZoom{Zoom: zoom})
}

// PageText returns host-extracted text for a PDF page, or "" when the
// host-side parse was unavailable.
func (s *Session) PageText(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pdfText == nil {
		return ""
	}
	return s.pdfText.PageText(n)
}

// AddBookmark stores the current position under a bookmark.
func (s *Session) AddBookmark(ctx context.Context, name string) (annotations.Bookmark, error) {
	if s.cfg.Store == nil {
		return annotations.Bookmark{}, fmt.Errorf("reader: no annotation store")
	}
	s.mu.Lock()
	a := s.positionAnchorLocked()
	pct := s.percentLocked()
	s.mu.Unlock()
	if a == nil {
		return annotations.Bookmark{}, fmt.Errorf("reader: no position to bookmark yet")
	}
	return s.cfg.Store.AddBookmark(ctx, s.documentID, a, name, pct)
}

// AddHighlight stores a highlight and paints it on the surface.
func (s *Session) AddHighlight(ctx context.Context, rng anchor.Anchor, color annotations.Color, text string) (annotations.Highlight, error) {
	if s.cfg.Store == nil {
		return annotations.Highlight{}, fmt.Errorf("reader: no annotation store")
	}
	h, err := s.cfg.Store.AddHighlight(ctx, s.documentID, rng, color, text)
	if err != nil {
		return annotations.Highlight{}, err
	}
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch != nil {
		if err := ch.Send(transport.AddHighlight{AnchorRange: h.RawAnchor, Color: color.Hex(), ID: h.ID}); err != nil {
			s.log.Warn("paint highlight failed", "error", err)
		}
	}
	return h, nil
}

// RemoveHighlight deletes a stored highlight and unpaints it.
func (s *Session) RemoveHighlight(ctx context.Context, h annotations.Highlight) error {
	if s.cfg.Store == nil {
		return fmt.Errorf("reader: no annotation store")
	}
	if err := s.cfg.Store.RemoveHighlight(ctx, h.ID); err != nil {
		return err
	}
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch != nil {
		if err := ch.Send(transport.RemoveHighlight{AnchorRange: h.RawAnchor}); err != nil {
			s.log.Warn("unpaint highlight failed", "error", err)
		}
	}
	return nil
}
