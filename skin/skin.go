// Package skin defines the contract between the reader engine and a
// device-class front end.
//
// Every skin (phone, desktop, television) drives the same Core and
// reads the same snapshots; only the input mapping differs. A gesture
// on a phone, a keystroke on a laptop and a d-pad press on a remote
// all collapse to the same small set of intents, which is what keeps
// reading positions and annotations portable across devices.
package skin

import "github.com/adibenedetto117/jellychub/reader"

// Core is the engine-side surface a skin drives. *reader.Session
// satisfies it.
type Core interface {
	Snapshot() reader.Snapshot

	Next() error
	Previous() error
	GotoPage(n int) error
	GotoPercent(p float64) error

	Search(query string) error
	NextMatch() error
	PrevMatch() error

	SetTheme(theme string) error
	SetFontSize(percent int) error
	SetZoom(zoom float64) error
}

// Action is a UI-level intent an input mapped to, beyond what the Core
// handles. The skin's host decides what toggling chrome or opening a
// search box looks like on its device.
type Action int

const (
	ActionNone Action = iota
	// ActionToggleChrome shows or hides the reading controls.
	ActionToggleChrome
	// ActionOpenSearch asks the host to collect a search query.
	ActionOpenSearch
	// ActionBack leaves the reader.
	ActionBack
)
