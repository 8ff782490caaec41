// Package anchor models format-specific, reflow-stable document
// positions.
//
// An anchor is written once when a bookmark or highlight is created and
// never rewritten by later relayout: zoom, theme and font-size changes
// move pixels, not anchors. Anchors serialise to a compact prefixed
// string ("epub:…", "pdf:12@40", "cbz:3") for persistence.
package anchor

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the anchor variants. It always matches the format
// of the session the anchor was captured in; resolving an anchor against
// a session of another format is a programming error, not a runtime
// condition to paper over.
type Kind string

const (
	KindEPUB Kind = "epub"
	KindPDF  Kind = "pdf"
	KindCBZ  Kind = "cbz"
)

// Anchor is one variant of the position union.
type Anchor interface {
	Kind() Kind

	// String serialises the anchor for persistence; Parse inverts it.
	String() string

	// Label is a short human-readable default used when a bookmark is
	// created without a name.
	Label() string
}

// CFI is an opaque reflowable content fragment identifier produced by
// the EPUB renderer. It is stable across font-size and theme changes but
// not across structural edits, which cannot happen here: documents are
// read-only.
type CFI string

func (CFI) Kind() Kind       { return KindEPUB }
func (c CFI) String() string { return "epub:" + string(c) }
func (c CFI) Label() string  { return "Location" }

// Page is a PDF position: 1-based page number, plus the text-match
// offset when the anchor was produced by search (0 otherwise).
type Page struct {
	Page   int
	Offset int
}

func (Page) Kind() Kind { return KindPDF }

func (p Page) String() string {
	if p.Offset > 0 {
		return fmt.Sprintf("pdf:%d@%d", p.Page, p.Offset)
	}
	return "pdf:" + strconv.Itoa(p.Page)
}

func (p Page) Label() string { return "Page " + strconv.Itoa(p.Page) }

// PageIndex is a CBZ position: 0-based page index.
type PageIndex int

func (PageIndex) Kind() Kind       { return KindCBZ }
func (i PageIndex) String() string { return "cbz:" + strconv.Itoa(int(i)) }

// Label shows the 1-based page number readers expect.
func (i PageIndex) Label() string { return "Page " + strconv.Itoa(int(i)+1) }

// Parse inverts String. The epub payload is treated as fully opaque; pdf
// and cbz payloads must be valid page references.
func Parse(s string) (Anchor, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("anchor: malformed %q", s)
	}

	switch Kind(kind) {
	case KindEPUB:
		if rest == "" {
			return nil, fmt.Errorf("anchor: empty epub fragment")
		}
		return CFI(rest), nil

	case KindPDF:
		pageStr, offStr, hasOff := strings.Cut(rest, "@")
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("anchor: bad pdf page %q", rest)
		}
		a := Page{Page: page}
		if hasOff {
			off, err := strconv.Atoi(offStr)
			if err != nil || off < 0 {
				return nil, fmt.Errorf("anchor: bad pdf offset %q", rest)
			}
			a.Offset = off
		}
		return a, nil

	case KindCBZ:
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("anchor: bad cbz index %q", rest)
		}
		return PageIndex(idx), nil

	default:
		return nil, fmt.Errorf("anchor: unknown kind %q", kind)
	}
}
