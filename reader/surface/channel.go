package surface

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/transport"
)

// eventMarker prefixes every surface→host console message so renderer
// chatter and third-party script noise never reach the decoder.
const eventMarker = "__JELLYREAD__"

//go:embed pages/pdf.html
var pdfPage string

//go:embed pages/epub.html
var epubPage string

//go:embed pages/cbz.html
var cbzPage string

func pageFor(kind anchor.Kind) (string, error) {
	switch kind {
	case anchor.KindPDF:
		return pdfPage, nil
	case anchor.KindEPUB:
		return epubPage, nil
	case anchor.KindCBZ:
		return cbzPage, nil
	default:
		return "", fmt.Errorf("surface: no renderer page for format %q", kind)
	}
}

// Channel is a transport.Channel backed by one browser page. Commands
// become injected script; events come back as marker-prefixed console
// messages and are decoded in arrival order.
type Channel struct {
	page      *rod.Page
	sessionID string
	log       *slog.Logger

	events chan transport.Event
	stop   func()

	mu     sync.Mutex
	closed bool
}

// Open creates a browser page for the given format, loads the embedded
// renderer document into it and starts the event pump. The first event
// delivered is webviewReady.
func Open(ctx context.Context, m *Manager, kind anchor.Kind, sessionID string, log *slog.Logger) (*Channel, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("surface: browser not started")
	}
	doc, err := pageFor(kind)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("surface: create page: %w", err)
	}
	page = page.Context(ctx)

	ch := &Channel{
		page:      page,
		sessionID: sessionID,
		log:       log,
		events:    make(chan transport.Event, 64),
	}

	// Subscribe before loading the document so the webviewReady emitted
	// by announce below cannot be missed.
	wait := page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		ch.onConsole(e)
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	ch.stop = func() {
		page.Close()
		<-done
		close(ch.events)
	}

	if err := page.SetDocumentContent(doc); err != nil {
		ch.stop()
		return nil, fmt.Errorf("surface: load renderer page: %w", err)
	}
	if _, err := page.Eval(fmt.Sprintf(
		`() => { window.__sessionId = %q; __reader.announce(); }`, sessionID)); err != nil {
		ch.stop()
		return nil, fmt.Errorf("surface: announce: %w", err)
	}

	return ch, nil
}

// Send injects one command into the renderer page. Commands sent on the
// same channel execute in order.
func (ch *Channel) Send(cmd transport.Command) error {
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed {
		return fmt.Errorf("surface: channel closed")
	}
	if _, err := ch.page.Eval("() => { " + cmd.Script() + " }"); err != nil {
		return fmt.Errorf("surface: send %T: %w", cmd, err)
	}
	return nil
}

// Events returns the surface event stream. The channel closes after
// Close.
func (ch *Channel) Events() <-chan transport.Event { return ch.events }

// Close tears the browser page down and closes the event stream.
// Idempotent.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.mu.Unlock()
	ch.stop()
	return nil
}

func (ch *Channel) onConsole(e *proto.RuntimeConsoleAPICalled) {
	if len(e.Args) == 0 {
		return
	}
	raw := e.Args[0].Value.Str()
	if !strings.HasPrefix(raw, eventMarker) {
		return
	}
	ev, err := transport.DecodeEvent([]byte(strings.TrimPrefix(raw, eventMarker)))
	if err != nil {
		ch.log.Warn("surface: undecodable event", "session", ch.sessionID, "error", err)
		return
	}

	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed {
		return
	}
	select {
	case ch.events <- ev:
	default:
		// A stalled consumer must not wedge the browser event loop.
		ch.log.Warn("surface: event dropped, consumer stalled",
			"session", ch.sessionID, "type", ev.Type())
	}
}
