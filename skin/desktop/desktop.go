// Package desktop maps keyboard input to reader intents.
package desktop

import (
	"strconv"

	"github.com/adibenedetto117/jellychub/skin"
)

// Skin is the keyboard input adapter.
type Skin struct {
	core skin.Core

	fontPct int
}

// New creates the adapter over a Core.
func New(core skin.Core) *Skin {
	return &Skin{core: core, fontPct: 100}
}

const (
	fontStep = 10
	fontMin  = 50
	fontMax  = 300
)

// HandleKey maps one key press. Key names follow the usual terminal
// conventions: "left", "right", "pgup", "pgdown", "home", "end",
// "/", "n", "N", "+", "-", "esc", "q". Unmapped keys are ignored.
func (s *Skin) HandleKey(key string) (skin.Action, error) {
	switch key {
	case "right", "pgdown", " ", "l":
		return skin.ActionNone, s.core.Next()
	case "left", "pgup", "h":
		return skin.ActionNone, s.core.Previous()
	case "home", "g":
		return skin.ActionNone, s.core.GotoPercent(0)
	case "end", "G":
		return skin.ActionNone, s.core.GotoPercent(1)
	case "/":
		return skin.ActionOpenSearch, nil
	case "n":
		return skin.ActionNone, s.core.NextMatch()
	case "N":
		return skin.ActionNone, s.core.PrevMatch()
	case "+", "=":
		return skin.ActionNone, s.adjustFont(fontStep)
	case "-":
		return skin.ActionNone, s.adjustFont(-fontStep)
	case "esc":
		return skin.ActionToggleChrome, s.core.Search("")
	case "q":
		return skin.ActionBack, nil
	}
	return skin.ActionNone, nil
}

// GotoPageInput parses a typed page number and navigates to it.
func (s *Skin) GotoPageInput(text string) error {
	n, err := strconv.Atoi(text)
	if err != nil {
		return err
	}
	return s.core.GotoPage(n)
}

// Search forwards a collected query to the core.
func (s *Skin) Search(query string) error {
	return s.core.Search(query)
}

func (s *Skin) adjustFont(delta int) error {
	next := s.fontPct + delta
	if next < fontMin {
		next = fontMin
	}
	if next > fontMax {
		next = fontMax
	}
	if next == s.fontPct {
		return nil
	}
	if err := s.core.SetFontSize(next); err != nil {
		return err
	}
	s.fontPct = next
	return nil
}
