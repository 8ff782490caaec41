// Package mobile maps touch input to reader intents: tap zones for
// page turns, swipes as an alternative, pinch for zoom.
package mobile

import "github.com/adibenedetto117/jellychub/skin"

// SwipeDirection is a horizontal swipe gesture.
type SwipeDirection int

const (
	SwipeLeft SwipeDirection = iota
	SwipeRight
)

// Skin is the touch input adapter.
type Skin struct {
	core skin.Core
}

// New creates the adapter over a Core.
func New(core skin.Core) *Skin { return &Skin{core: core} }

// Tap zone boundaries as fractions of the viewport width. The middle
// zone toggles chrome; the outer zones turn pages.
const (
	leftZone  = 0.3
	rightZone = 0.7
)

// HandleTap maps a tap at horizontal position x within a viewport of
// the given width. Taps in the outer thirds turn pages; reading
// direction is already applied inside the core, so the left zone is
// always "backward in the reading flow" visually.
func (s *Skin) HandleTap(x, width float64) (skin.Action, error) {
	if width <= 0 {
		return skin.ActionNone, nil
	}
	switch pos := x / width; {
	case pos < leftZone:
		return skin.ActionNone, s.core.Previous()
	case pos > rightZone:
		return skin.ActionNone, s.core.Next()
	default:
		return skin.ActionToggleChrome, nil
	}
}

// HandleSwipe maps a horizontal swipe: swiping left pulls the next page
// in, swiping right the previous one.
func (s *Skin) HandleSwipe(dir SwipeDirection) error {
	if dir == SwipeLeft {
		return s.core.Next()
	}
	return s.core.Previous()
}

// HandlePinch maps a pinch gesture's scale factor to zoom.
func (s *Skin) HandlePinch(scale float64) error {
	return s.core.SetZoom(scale)
}

// HandleSeek maps a progress-bar drag to a normalized position.
func (s *Skin) HandleSeek(fraction float64) error {
	return s.core.GotoPercent(fraction)
}
