// Package search drives in-document text search for paginated formats.
//
// The surface owns the actual scan; this controller owns the request
// lifecycle around it. Every query carries a sequence number, and a
// result set is only accepted while its sequence is still the newest
// one issued, so a slow scan can never clobber the results of a query
// typed after it.
package search

import (
	"fmt"
	"sort"
	"sync"

	"github.com/adibenedetto117/jellychub/reader/transport"
)

// Controller tracks one session's search state: the active query, the
// pages it matched and a cursor that cycles through them.
type Controller struct {
	send     func(transport.Command) error
	navigate func(page int) error

	mu      sync.Mutex
	seq     uint64
	query   string
	pages   []int
	cursor  int
	hasHits bool
}

// New creates a Controller. send pushes commands to the surface;
// navigate jumps the session to a matched page (typically nav.GotoPage).
func New(send func(transport.Command) error, navigate func(page int) error) *Controller {
	return &Controller{send: send, navigate: navigate}
}

// Search issues a new query, superseding any in-flight one. An empty
// query clears the current results without touching the surface.
func (c *Controller) Search(query string) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.query = query
	c.pages = nil
	c.cursor = 0
	c.hasHits = false
	c.mu.Unlock()

	if query == "" {
		return nil
	}
	if err := c.send(transport.SearchText{Query: query, Seq: seq}); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// HandleResults ingests a searchResults event. Result sets whose
// sequence is not the most recently issued are dropped. On acceptance
// the cursor seeds at the first match and the session navigates there.
func (c *Controller) HandleResults(ev transport.SearchResults) error {
	c.mu.Lock()
	if ev.Seq != c.seq {
		c.mu.Unlock()
		return nil
	}
	pages := append([]int(nil), ev.Pages...)
	sort.Ints(pages)
	c.pages = pages
	c.cursor = 0
	c.hasHits = len(pages) > 0
	first := 0
	if c.hasHits {
		first = pages[0]
	}
	hasHits := c.hasHits
	c.mu.Unlock()

	if !hasHits {
		return nil
	}
	return c.navigate(first)
}

// Next advances the cursor to the following matched page, wrapping to
// the first match past the last. With no results it is a no-op.
func (c *Controller) Next() error {
	return c.advance(1)
}

// Previous retreats the cursor, wrapping to the last match before the
// first.
func (c *Controller) Previous() error {
	return c.advance(-1)
}

func (c *Controller) advance(delta int) error {
	c.mu.Lock()
	if !c.hasHits {
		c.mu.Unlock()
		return nil
	}
	n := len(c.pages)
	c.cursor = ((c.cursor+delta)%n + n) % n
	page := c.pages[c.cursor]
	c.mu.Unlock()
	return c.navigate(page)
}

// Clear drops the active query and results.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.query = ""
	c.pages = nil
	c.cursor = 0
	c.hasHits = false
}

// Results returns the matched pages in ascending order and the page the
// cursor currently points at. ok is false when there is no selection,
// either because nothing matched or no query is active.
func (c *Controller) Results() (pages []int, current int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasHits {
		return append([]int(nil), c.pages...), 0, false
	}
	return append([]int(nil), c.pages...), c.pages[c.cursor], true
}

// Query returns the active query string.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}
