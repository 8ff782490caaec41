package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// Init clears the surface's chunk buffer and announces an upload of
// TotalChunks pieces. Seq correlates the whole upload: the surface echoes
// it back on the resulting ready or error event so a superseded upload
// can never complete a newer load.
type Init struct {
	Seq         uint64
	TotalChunks int
}

func (c Init) Script() string {
	return fmt.Sprintf("__reader.init(%d, %d); true;", c.Seq, c.TotalChunks)
}

// AppendChunk appends one base64 substring to the surface's reassembly
// buffer. Chunks must be sent in order on the same channel.
type AppendChunk struct {
	Data string
}

func (c AppendChunk) Script() string {
	return "__reader.chunk(" + jsString(c.Data) + "); true;"
}

// Assemble tells the surface to join the buffered chunks, base64-decode
// the result and initialise its renderer from the decoded payload.
type Assemble struct {
	Seq uint64
}

func (c Assemble) Script() string {
	return fmt.Sprintf("__reader.assemble(%d); true;", c.Seq)
}

// LoadDocument hands the surface a locally resolved document to open
// directly, without chunking. Used for EPUB and CBZ payloads; PDFs go
// through Init/AppendChunk/Assemble instead.
type LoadDocument struct {
	URI         string
	StartAnchor string
}

func (c LoadDocument) Script() string {
	return "__reader.load(" + jsString(c.URI) + ", " + jsString(c.StartAnchor) + "); true;"
}

// GotoPage navigates to a unit index. The host clamps before sending;
// the surface additionally ignores out-of-range values.
type GotoPage struct {
	Page int
}

func (c GotoPage) Script() string {
	return "goToPage(" + strconv.Itoa(c.Page) + "); true;"
}

// NextPage advances one visual page in a reflowable surface, which is
// the only side that knows where the next column break falls.
type NextPage struct{}

func (NextPage) Script() string { return "nextPage(); true;" }

// PrevPage is the reflowable counterpart of NextPage.
type PrevPage struct{}

func (PrevPage) Script() string { return "prevPage(); true;" }

// GotoAnchor navigates to an opaque reflow anchor (EPUB CFI).
type GotoAnchor struct {
	Anchor string
}

func (c GotoAnchor) Script() string {
	return "goToAnchor(" + jsString(c.Anchor) + "); true;"
}

// GotoPercent navigates to a normalized position in [0,1].
type GotoPercent struct {
	Percent float64
}

func (c GotoPercent) Script() string {
	return "goToPercent(" + formatFloat(c.Percent) + "); true;"
}

// SetZoom adjusts the surface zoom factor.
type SetZoom struct {
	Zoom float64
}

func (c SetZoom) Script() string {
	return "setZoom(" + formatFloat(c.Zoom) + "); true;"
}

// SetTheme switches the surface color theme (dark, light, sepia).
type SetTheme struct {
	Theme string
}

func (c SetTheme) Script() string {
	return "setTheme(" + jsString(c.Theme) + "); true;"
}

// SetFontSize sets the reflowable font size as a percentage of the
// default. Reflow moves visual content but never rewrites stored anchors.
type SetFontSize struct {
	Percent int
}

func (c SetFontSize) Script() string {
	return "setFontSize(" + strconv.Itoa(c.Percent) + "); true;"
}

// SearchText runs a full-text scan inside the surface. Seq is echoed on
// the searchResults event; the host drops results whose Seq is stale.
type SearchText struct {
	Query string
	Seq   uint64
}

func (c SearchText) Script() string {
	return fmt.Sprintf("searchText(%s, %d); true;", jsString(c.Query), c.Seq)
}

// AddHighlight paints a stored highlight onto the current render.
type AddHighlight struct {
	AnchorRange string
	Color       string
	ID          string
}

func (c AddHighlight) Script() string {
	return "addHighlightAnnotation(" + jsString(c.AnchorRange) + ", " +
		jsString(c.Color) + ", " + jsString(c.ID) + "); true;"
}

// RemoveHighlight removes a painted highlight from the current render.
type RemoveHighlight struct {
	AnchorRange string
}

func (c RemoveHighlight) Script() string {
	return "removeHighlightAnnotation(" + jsString(c.AnchorRange) + "); true;"
}

// jsString renders s as a double-quoted JavaScript string literal. The
// escape set matches what the injection boundary tolerates: backslashes,
// quotes and line terminators.
func jsString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
