// Package annotations persists bookmarks, highlights and reading
// progress, keyed by document id.
//
// The host process is the only source of truth here: the rendering
// surface owns nothing but transient visual state, and every fact worth
// keeping crosses the boundary as an event before it lands in this
// store. Anchors are serialised with their format tag (see
// reader/anchor) so a stored record can always be told apart from a
// record of another format.
package annotations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adibenedetto117/jellychub/dbopen"
	"github.com/adibenedetto117/jellychub/reader/anchor"
)

// Schema for the annotation tables. Pass to dbopen.WithSchema or apply
// via Store.Init.
const Schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	anchor TEXT NOT NULL,
	name TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookmarks_doc ON bookmarks(document_id, created_at);

CREATE TABLE IF NOT EXISTS highlights (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	anchor_range TEXT NOT NULL,
	color TEXT NOT NULL,
	text TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_highlights_doc ON highlights(document_id, created_at);

CREATE TABLE IF NOT EXISTS reading_progress (
	document_id TEXT PRIMARY KEY,
	anchor TEXT NOT NULL,
	percent REAL NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Color is one of the fixed highlight palette entries.
type Color string

const (
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	Pink   Color = "pink"
)

var palette = map[Color]string{
	Yellow: "#fef08a",
	Green:  "#86efac",
	Blue:   "#93c5fd",
	Pink:   "#f9a8d4",
}

// Hex returns the render color for the surface.
func (c Color) Hex() string { return palette[c] }

// Valid reports whether c is in the palette.
func (c Color) Valid() bool { _, ok := palette[c]; return ok }

// Bookmark is a named position in a document.
type Bookmark struct {
	ID         string
	DocumentID string
	// Anchor is nil when the stored value no longer parses; the record
	// is still listed so it survives until resolution succeeds again.
	Anchor          anchor.Anchor
	RawAnchor       string
	Name            string
	ProgressPercent float64
	CreatedAt       time.Time
}

// Highlight is a colored text range. Text is snapshotted at creation and
// never re-derived: reflow may move the anchor's pixels, but the
// snapshot stays the highlight's display identity.
type Highlight struct {
	ID         string
	DocumentID string
	// AnchorRange is the range anchor: for EPUB an opaque CFI range in a
	// single fragment, for PDF a page anchor with match offset.
	AnchorRange anchor.Anchor
	RawAnchor   string
	Color       Color
	Text        string
	Note        string
	CreatedAt   time.Time
}

// Store is the annotation data access layer over one SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-opened database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Init creates the annotation tables if they don't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// AddBookmark captures the given anchor under a new bookmark. An empty
// name defaults to a label derived from the anchor.
func (s *Store) AddBookmark(ctx context.Context, docID string, a anchor.Anchor, name string, progressPercent float64) (Bookmark, error) {
	if a == nil {
		return Bookmark{}, fmt.Errorf("annotations: nil anchor")
	}
	if name == "" {
		name = a.Label()
	}
	b := Bookmark{
		ID:              uuid.NewString(),
		DocumentID:      docID,
		Anchor:          a,
		RawAnchor:       a.String(),
		Name:            name,
		ProgressPercent: progressPercent,
		CreatedAt:       time.Now(),
	}

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bookmarks (id, document_id, anchor, name, progress, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.DocumentID, b.RawAnchor, b.Name, b.ProgressPercent, b.CreatedAt.UnixMilli())
		return err
	})
	if err != nil {
		return Bookmark{}, fmt.Errorf("annotations: add bookmark: %w", err)
	}
	return b, nil
}

// RemoveBookmark deletes a bookmark by id. Removing a nonexistent id is
// a no-op, not an error.
func (s *Store) RemoveBookmark(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("annotations: remove bookmark: %w", err)
	}
	return nil
}

// BookmarksFor lists a document's bookmarks in creation order. Insert
// order (rowid) is the ordering source; created_at is display metadata
// and its millisecond resolution cannot break ties.
func (s *Store) BookmarksFor(ctx context.Context, docID string) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, anchor, name, progress, created_at
		 FROM bookmarks WHERE document_id = ? ORDER BY rowid`, docID)
	if err != nil {
		return nil, fmt.Errorf("annotations: list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var b Bookmark
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.DocumentID, &b.RawAnchor, &b.Name, &b.ProgressPercent, &createdAt); err != nil {
			return nil, fmt.Errorf("annotations: scan bookmark: %w", err)
		}
		b.CreatedAt = time.UnixMilli(createdAt)
		// A corrupt stored anchor leaves Anchor nil; the record survives
		// for a future successful resolution.
		b.Anchor, _ = anchor.Parse(b.RawAnchor)
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddHighlight stores a new highlight with its creation-time text
// snapshot. The snapshot is immutable for the life of the record.
func (s *Store) AddHighlight(ctx context.Context, docID string, anchorRange anchor.Anchor, color Color, text string) (Highlight, error) {
	if anchorRange == nil {
		return Highlight{}, fmt.Errorf("annotations: nil anchor range")
	}
	if !color.Valid() {
		return Highlight{}, fmt.Errorf("annotations: unknown color %q", color)
	}
	h := Highlight{
		ID:          uuid.NewString(),
		DocumentID:  docID,
		AnchorRange: anchorRange,
		RawAnchor:   anchorRange.String(),
		Color:       color,
		Text:        text,
		CreatedAt:   time.Now(),
	}

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO highlights (id, document_id, anchor_range, color, text, note, created_at)
			 VALUES (?, ?, ?, ?, ?, '', ?)`,
			h.ID, h.DocumentID, h.RawAnchor, string(h.Color), h.Text, h.CreatedAt.UnixMilli())
		return err
	})
	if err != nil {
		return Highlight{}, fmt.Errorf("annotations: add highlight: %w", err)
	}
	return h, nil
}

// SetNote attaches or replaces the free-text note of a highlight. The
// text snapshot is deliberately not updatable.
func (s *Store) SetNote(ctx context.Context, id, note string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE highlights SET note = ? WHERE id = ?`, note, id); err != nil {
		return fmt.Errorf("annotations: set note: %w", err)
	}
	return nil
}

// RemoveHighlight deletes a highlight by id. Idempotent.
func (s *Store) RemoveHighlight(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM highlights WHERE id = ?`, id); err != nil {
		return fmt.Errorf("annotations: remove highlight: %w", err)
	}
	return nil
}

// HighlightsFor lists a document's highlights in creation order.
func (s *Store) HighlightsFor(ctx context.Context, docID string) ([]Highlight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, anchor_range, color, text, note, created_at
		 FROM highlights WHERE document_id = ? ORDER BY rowid`, docID)
	if err != nil {
		return nil, fmt.Errorf("annotations: list highlights: %w", err)
	}
	defer rows.Close()

	var out []Highlight
	for rows.Next() {
		var h Highlight
		var color string
		var createdAt int64
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.RawAnchor, &color, &h.Text, &h.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("annotations: scan highlight: %w", err)
		}
		h.Color = Color(color)
		h.CreatedAt = time.UnixMilli(createdAt)
		h.AnchorRange, _ = anchor.Parse(h.RawAnchor)
		out = append(out, h)
	}
	return out, rows.Err()
}

// SaveProgress upserts the last-read position for a document.
func (s *Store) SaveProgress(ctx context.Context, docID string, a anchor.Anchor, percent float64) error {
	if a == nil {
		return fmt.Errorf("annotations: nil anchor")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reading_progress (document_id, anchor, percent, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
		   anchor = excluded.anchor,
		   percent = excluded.percent,
		   updated_at = excluded.updated_at`,
		docID, a.String(), percent, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("annotations: save progress: %w", err)
	}
	return nil
}

// Progress returns the last-read position, or ok=false when the document
// has never been opened (or its stored anchor no longer parses).
func (s *Store) Progress(ctx context.Context, docID string) (a anchor.Anchor, percent float64, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT anchor, percent FROM reading_progress WHERE document_id = ?`, docID).
		Scan(&raw, &percent)
	if err == sql.ErrNoRows {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("annotations: progress: %w", err)
	}
	a, perr := anchor.Parse(raw)
	if perr != nil {
		return nil, 0, false, nil
	}
	return a, percent, true, nil
}
