package transport

import (
	"encoding/json"
	"fmt"
)

// Event is a surface→host message. Session reports the owning document
// session so the host can drop stale replies after a document switch.
type Event interface {
	Type() string
	Session() string
}

// WebviewReady signals that the surface page has loaded its renderer
// script and is ready to receive a payload.
type WebviewReady struct {
	SessionID string
}

func (WebviewReady) Type() string      { return "webviewReady" }
func (e WebviewReady) Session() string { return e.SessionID }

// Ready signals first content paint. TotalUnits is the page count for
// paginated formats; for EPUB it is a provisional count with
// LocationsPending set until pagination finishes (see LocationsReady).
type Ready struct {
	SessionID        string
	Seq              uint64
	TotalUnits       int
	CurrentUnit      int
	LocationsPending bool
}

func (Ready) Type() string      { return "ready" }
func (e Ready) Session() string { return e.SessionID }

// LocationsReady finalises EPUB pagination, upgrading the provisional
// unit count from Ready. It can only raise precision, never invalidate
// navigation that happened after Ready.
type LocationsReady struct {
	SessionID  string
	TotalUnits int
}

func (LocationsReady) Type() string      { return "locationsReady" }
func (e LocationsReady) Session() string { return e.SessionID }

// PageChange reports the unit the surface is now displaying.
type PageChange struct {
	SessionID string
	Unit      int
}

func (PageChange) Type() string      { return "pageChange" }
func (e PageChange) Session() string { return e.SessionID }

// Relocated reports a reflowable position change as an opaque anchor
// plus a normalized progress percent in [0,100].
type Relocated struct {
	SessionID string
	Anchor    string
	Percent   float64
}

func (Relocated) Type() string      { return "relocated" }
func (e Relocated) Session() string { return e.SessionID }

// SearchResults carries the full ordered match list for one search
// request. Seq echoes SearchText.Seq; stale sequences are dropped by the
// host.
type SearchResults struct {
	SessionID string
	Seq       uint64
	Pages     []int
}

func (SearchResults) Type() string      { return "searchResults" }
func (e SearchResults) Session() string { return e.SessionID }

// ErrorEvent reports a surface-side failure. Kind distinguishes decode
// failures (retryable by re-download) from render failures (retryable by
// session restart); an empty Kind means render.
type ErrorEvent struct {
	SessionID string
	Seq       uint64
	Kind      string
	Message   string
}

func (ErrorEvent) Type() string      { return "error" }
func (e ErrorEvent) Session() string { return e.SessionID }

// DebugEvent carries surface-side status strings for liveness display.
type DebugEvent struct {
	SessionID string
	Message   string
}

func (DebugEvent) Type() string      { return "debug" }
func (e DebugEvent) Session() string { return e.SessionID }

// envelope is the superset wire shape of all surface messages.
type envelope struct {
	Type             string  `json:"type"`
	SessionID        string  `json:"sessionId"`
	Seq              uint64  `json:"seq"`
	TotalUnits       int     `json:"totalUnits"`
	CurrentUnit      int     `json:"currentUnit"`
	LocationsPending bool    `json:"locationsPending"`
	Unit             int     `json:"unit"`
	Anchor           string  `json:"anchor"`
	Percent          float64 `json:"percent"`
	Pages            []int   `json:"pages"`
	Kind             string  `json:"kind"`
	Message          string  `json:"message"`
}

// DecodeEvent parses one JSON message posted by a surface into its typed
// event. Unknown types are an error so protocol drift is caught loudly
// instead of silently dropped.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("transport: decode event: %w", err)
	}

	switch env.Type {
	case "webviewReady":
		return WebviewReady{SessionID: env.SessionID}, nil
	case "ready":
		return Ready{
			SessionID:        env.SessionID,
			Seq:              env.Seq,
			TotalUnits:       env.TotalUnits,
			CurrentUnit:      env.CurrentUnit,
			LocationsPending: env.LocationsPending,
		}, nil
	case "locationsReady":
		return LocationsReady{SessionID: env.SessionID, TotalUnits: env.TotalUnits}, nil
	case "pageChange":
		return PageChange{SessionID: env.SessionID, Unit: env.Unit}, nil
	case "relocated":
		return Relocated{SessionID: env.SessionID, Anchor: env.Anchor, Percent: env.Percent}, nil
	case "searchResults":
		return SearchResults{SessionID: env.SessionID, Seq: env.Seq, Pages: env.Pages}, nil
	case "error":
		return ErrorEvent{SessionID: env.SessionID, Seq: env.Seq, Kind: env.Kind, Message: env.Message}, nil
	case "debug":
		return DebugEvent{SessionID: env.SessionID, Message: env.Message}, nil
	default:
		return nil, fmt.Errorf("transport: unknown event type %q", env.Type)
	}
}
