// Package nav translates page- and location-relative intents into
// transport commands, bounded by the owning session.
//
// Every operation clamps to the nearest valid boundary instead of
// erroring: a gotoPage(0) against 1-indexed pages lands on page 1, a
// gotoPage past the end lands on the last page. Reading direction is
// applied here and nowhere else, so the same physical gesture flips its
// meaning when a right-to-left comic reverses direction.
package nav

import (
	"fmt"
	"math"

	"github.com/adibenedetto117/jellychub/reader/anchor"
	"github.com/adibenedetto117/jellychub/reader/transport"
)

// Direction is the reading direction of the open document.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Config wires a Controller to its session. Total, Current and
// Direction are callbacks because the session mutates underneath the
// controller as surface events arrive.
type Config struct {
	// Send pushes a command onto the session's transport channel.
	Send func(transport.Command) error

	// Total returns the current unit count (0 while unknown).
	Total func() int

	// Current returns the unit the surface last reported.
	Current func() int

	// Direction returns the active reading direction.
	Direction func() Direction

	// FirstUnit is the lowest valid unit: 1 for PDF pages, 0 for CBZ
	// page indices and reflowable EPUB positions.
	FirstUnit int

	// Reflow marks a continuously reflowing surface (EPUB): stepping is
	// delegated to the surface and absolute targets travel as percents.
	Reflow bool

	// Kind guards GotoAnchor against cross-format anchors.
	Kind anchor.Kind
}

// Controller is the navigation front of one document session.
type Controller struct {
	cfg Config
}

// New creates a Controller. Send, Total and Current are required.
func New(cfg Config) *Controller {
	if cfg.Direction == nil {
		cfg.Direction = func() Direction { return LTR }
	}
	return &Controller{cfg: cfg}
}

// Clamp returns n forced into the session's valid unit range. With no
// known units yet it returns the first unit.
func (c *Controller) Clamp(n int) int {
	total := c.cfg.Total()
	if total <= 0 {
		return c.cfg.FirstUnit
	}
	last := c.cfg.FirstUnit + total - 1
	if n < c.cfg.FirstUnit {
		return c.cfg.FirstUnit
	}
	if n > last {
		return last
	}
	return n
}

// Next advances one unit in reading order. Under RTL the physical
// "forward" gesture moves backward through unit numbers.
func (c *Controller) Next() error {
	return c.step(1)
}

// Previous retreats one unit in reading order.
func (c *Controller) Previous() error {
	return c.step(-1)
}

func (c *Controller) step(delta int) error {
	if c.cfg.Direction() == RTL {
		delta = -delta
	}
	if c.cfg.Reflow {
		if delta > 0 {
			return c.cfg.Send(transport.NextPage{})
		}
		return c.cfg.Send(transport.PrevPage{})
	}
	return c.cfg.Send(transport.GotoPage{Page: c.Clamp(c.cfg.Current() + delta)})
}

// GotoPage navigates to an absolute unit, clamped. On a reflowable
// session with pagination still pending this is a no-op.
func (c *Controller) GotoPage(n int) error {
	if c.cfg.Reflow {
		total := c.cfg.Total()
		if total <= 1 {
			return nil
		}
		p := float64(c.Clamp(n)-c.cfg.FirstUnit) / float64(total-1)
		return c.cfg.Send(transport.GotoPercent{Percent: p})
	}
	return c.cfg.Send(transport.GotoPage{Page: c.Clamp(n)})
}

// GotoPercent navigates to a normalized position p in [0,1], clamped.
func (c *Controller) GotoPercent(p float64) error {
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	if c.cfg.Reflow {
		return c.cfg.Send(transport.GotoPercent{Percent: p})
	}
	total := c.cfg.Total()
	if total <= 0 {
		return c.cfg.Send(transport.GotoPage{Page: c.cfg.FirstUnit})
	}
	n := c.cfg.FirstUnit + int(math.Round(p*float64(total-1)))
	return c.cfg.Send(transport.GotoPage{Page: c.Clamp(n)})
}

// GotoAnchor resolves a stored anchor back into a navigation command.
// Anchors of the wrong kind are a caller bug and come back as an error.
func (c *Controller) GotoAnchor(a anchor.Anchor) error {
	if a == nil {
		return fmt.Errorf("nav: nil anchor")
	}
	if a.Kind() != c.cfg.Kind {
		return fmt.Errorf("nav: %s anchor against %s session", a.Kind(), c.cfg.Kind)
	}

	switch v := a.(type) {
	case anchor.CFI:
		return c.cfg.Send(transport.GotoAnchor{Anchor: string(v)})
	case anchor.Page:
		return c.cfg.Send(transport.GotoPage{Page: c.Clamp(v.Page)})
	case anchor.PageIndex:
		return c.cfg.Send(transport.GotoPage{Page: c.Clamp(int(v))})
	default:
		return fmt.Errorf("nav: unhandled anchor %T", a)
	}
}
