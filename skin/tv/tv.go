// Package tv maps remote-control d-pad input to reader intents. The
// ten-foot interface has no pointer and no keyboard, so everything must
// be reachable through five buttons and back.
package tv

import (
	"github.com/adibenedetto117/jellychub/reader"
	"github.com/adibenedetto117/jellychub/skin"
)

// Button is one remote-control button.
type Button int

const (
	DPadLeft Button = iota
	DPadRight
	DPadUp
	DPadDown
	Select
	Back
)

// Skin is the remote-control input adapter.
type Skin struct {
	core skin.Core
}

// New creates the adapter over a Core.
func New(core skin.Core) *Skin { return &Skin{core: core} }

// coarseJump is the fraction moved by an up/down press, a chapter-scale
// hop for a remote with no page-number entry.
const coarseJump = 0.1

// HandleButton maps one button press. Left/right turn pages, up/down
// jump by a tenth of the document, select toggles chrome and back
// leaves the reader.
func (s *Skin) HandleButton(b Button) (skin.Action, error) {
	switch b {
	case DPadRight:
		return skin.ActionNone, s.core.Next()
	case DPadLeft:
		return skin.ActionNone, s.core.Previous()
	case DPadDown:
		return skin.ActionNone, s.jump(coarseJump)
	case DPadUp:
		return skin.ActionNone, s.jump(-coarseJump)
	case Select:
		return skin.ActionToggleChrome, nil
	case Back:
		return skin.ActionBack, nil
	}
	return skin.ActionNone, nil
}

func (s *Skin) jump(delta float64) error {
	snap := s.core.Snapshot()
	var at float64
	if snap.TotalUnits > 1 {
		first := 0
		if snap.Format != reader.FormatCBZ {
			first = 1
		}
		at = float64(snap.CurrentUnit-first) / float64(snap.TotalUnits-1)
	}
	target := at + delta
	if target < 0 {
		target = 0
	}
	if target > 1 {
		target = 1
	}
	return s.core.GotoPercent(target)
}
