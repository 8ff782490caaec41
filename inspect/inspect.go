// Package inspect exposes a read-only HTTP view of the reader's state:
// live session snapshots and stored annotations, as JSON. It exists for
// debugging and dashboards; nothing here mutates anything.
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adibenedetto117/jellychub/reader"
	"github.com/adibenedetto117/jellychub/reader/annotations"
)

// SessionSource provides the live sessions to report on.
type SessionSource interface {
	Snapshots() []reader.Snapshot
}

// Service is the inspect HTTP surface.
type Service struct {
	src   SessionSource
	store *annotations.Store
	log   *slog.Logger
}

// NewService creates the Service. store may be nil when annotation
// persistence is disabled; the annotation endpoints then 404.
func NewService(src SessionSource, store *annotations.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, store: store, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/sessions", s.handleSessions)
	r.Get("/sessions/{id}", s.handleSession)
	if s.store != nil {
		r.Get("/documents/{id}/bookmarks", s.handleBookmarks)
		r.Get("/documents/{id}/highlights", s.handleHighlights)
	}
	return r
}

// sessionInfo is the wire shape of one session snapshot.
type sessionInfo struct {
	SessionID   string  `json:"session_id"`
	DocumentID  string  `json:"document_id"`
	Format      string  `json:"format"`
	Phase       string  `json:"phase"`
	Message     string  `json:"message,omitempty"`
	Progress    float64 `json:"progress"`
	TotalUnits  int     `json:"total_units"`
	CurrentUnit int     `json:"current_unit"`
	Direction   string  `json:"direction"`
	SearchPages []int   `json:"search_pages,omitempty"`
}

func toSessionInfo(snap reader.Snapshot) sessionInfo {
	return sessionInfo{
		SessionID:   snap.SessionID,
		DocumentID:  snap.DocumentID,
		Format:      string(snap.Format),
		Phase:       string(snap.Phase),
		Message:     snap.Message,
		Progress:    snap.Progress,
		TotalUnits:  snap.TotalUnits,
		CurrentUnit: snap.CurrentUnit,
		Direction:   string(snap.Direction),
		SearchPages: snap.SearchPages,
	}
}

func (s *Service) handleSessions(w http.ResponseWriter, r *http.Request) {
	snaps := s.src.Snapshots()
	out := make([]sessionInfo, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSessionInfo(snap))
	}
	s.writeJSON(w, out)
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, snap := range s.src.Snapshots() {
		if snap.SessionID == id {
			s.writeJSON(w, toSessionInfo(snap))
			return
		}
	}
	http.Error(w, "session not found", http.StatusNotFound)
}

type bookmarkInfo struct {
	ID       string  `json:"id"`
	Anchor   string  `json:"anchor"`
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
}

func (s *Service) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	list, err := s.store.BookmarksFor(r.Context(), docID)
	if err != nil {
		s.log.Error("inspect: list bookmarks", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]bookmarkInfo, 0, len(list))
	for _, b := range list {
		out = append(out, bookmarkInfo{
			ID:       b.ID,
			Anchor:   b.RawAnchor,
			Name:     b.Name,
			Progress: b.ProgressPercent,
		})
	}
	s.writeJSON(w, out)
}

type highlightInfo struct {
	ID          string `json:"id"`
	AnchorRange string `json:"anchor_range"`
	Color       string `json:"color"`
	Text        string `json:"text"`
	Note        string `json:"note,omitempty"`
}

func (s *Service) handleHighlights(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	list, err := s.store.HighlightsFor(r.Context(), docID)
	if err != nil {
		s.log.Error("inspect: list highlights", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]highlightInfo, 0, len(list))
	for _, h := range list {
		out = append(out, highlightInfo{
			ID:          h.ID,
			AnchorRange: h.RawAnchor,
			Color:       string(h.Color),
			Text:        h.Text,
			Note:        h.Note,
		})
	}
	s.writeJSON(w, out)
}

func (s *Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("inspect: encode response", "error", err)
	}
}
