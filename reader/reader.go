// Package reader is the document session engine: it acquires a book,
// hands it to a sandboxed rendering surface over the script-injection
// transport, and tracks the session through its lifecycle so skins can
// present a consistent reading experience on any device class.
//
// A session moves downloading → extracting (CBZ only) → loading →
// ready, bounces between ready and searching, and can end in one of two
// terminal phases: error, which a new attempt may recover from, and
// unsupported, which no retry will fix.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/cbzfile"
	"github.com/adibenedetto117/jellychub/reader/nav"
)

// Format identifies the document container.
type Format string

const (
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
	FormatCBZ  Format = "cbz"
)

// Kind maps a Format to its anchor namespace.
func (f Format) Kind() anchor.Kind {
	switch f {
	case FormatEPUB:
		return anchor.KindEPUB
	case FormatPDF:
		return anchor.KindPDF
	case FormatCBZ:
		return anchor.KindCBZ
	}
	return anchor.Kind("")
}

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseExtracting  Phase = "extracting"
	PhaseLoading     Phase = "loading"
	PhaseReady       Phase = "ready"
	PhaseSearching   Phase = "searching"
	// PhaseError is terminal for this attempt but retryable from
	// scratch.
	PhaseError Phase = "error"
	// PhaseUnsupported is terminal and not retryable; Message explains
	// what the user can do instead.
	PhaseUnsupported Phase = "unsupported"
)

// Terminal reports whether the phase ends the session.
func (p Phase) Terminal() bool { return p == PhaseError || p == PhaseUnsupported }

// ErrUnsupported wraps a format we recognise but will not render.
type ErrUnsupported struct {
	Message string
}

func (e ErrUnsupported) Error() string { return e.Message }

const cbrAdvice = "CBR archives are not supported. Convert the file to CBZ to read it here."

var pdfMagic = []byte("%PDF")

// DetectFormat resolves the container format from the filename and the
// payload head. RAR comics come back as ErrUnsupported: recognised,
// refused, explained.
func DetectFormat(name string, head []byte) (Format, error) {
	if cbzfile.IsRAR(name, head) {
		return "", ErrUnsupported{Message: cbrAdvice}
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return FormatPDF, nil
	case ".epub":
		return FormatEPUB, nil
	case ".cbz":
		return FormatCBZ, nil
	}

	if bytes.HasPrefix(head, pdfMagic) {
		return FormatPDF, nil
	}
	return "", fmt.Errorf("reader: cannot determine format of %q", name)
}

// Fetcher resolves a document id to a local file. Implementations
// report download progress as a fraction in [0,1].
type Fetcher interface {
	Fetch(ctx context.Context, documentID string, progress func(float64)) (localPath string, err error)
}

// Snapshot is an immutable view of session state, delivered to
// observers on every change.
type Snapshot struct {
	SessionID  string
	DocumentID string
	Format     Format
	Phase      Phase
	// Message is non-empty in the error and unsupported phases.
	Message string
	// Progress is the acquisition fraction in [0,1], meaningful while
	// downloading and extracting.
	Progress float64

	TotalUnits  int
	CurrentUnit int
	// LocationsPending marks a provisional TotalUnits that a later
	// pagination pass will refine.
	LocationsPending bool
	Direction        nav.Direction

	// SearchPages and SearchCurrent mirror the active search result
	// set; SearchActive is false when there is no selection.
	SearchPages   []int
	SearchCurrent int
	SearchActive  bool
}
