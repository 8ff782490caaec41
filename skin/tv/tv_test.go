package tv

import (
	"fmt"
	"testing"

	"github.com/adibenedetto117/jellychub/reader"
	"github.com/adibenedetto117/jellychub/skin"
)

type fakeCore struct {
	calls []string
	snap  reader.Snapshot
}

func (f *fakeCore) Snapshot() reader.Snapshot { return f.snap }
func (f *fakeCore) Next() error               { f.calls = append(f.calls, "next"); return nil }
func (f *fakeCore) Previous() error           { f.calls = append(f.calls, "previous"); return nil }
func (f *fakeCore) GotoPage(n int) error {
	f.calls = append(f.calls, fmt.Sprintf("gotoPage(%d)", n))
	return nil
}
func (f *fakeCore) GotoPercent(p float64) error {
	f.calls = append(f.calls, fmt.Sprintf("gotoPercent(%.2f)", p))
	return nil
}
func (f *fakeCore) Search(q string) error   { f.calls = append(f.calls, "search("+q+")"); return nil }
func (f *fakeCore) NextMatch() error        { f.calls = append(f.calls, "nextMatch"); return nil }
func (f *fakeCore) PrevMatch() error        { f.calls = append(f.calls, "prevMatch"); return nil }
func (f *fakeCore) SetTheme(t string) error { f.calls = append(f.calls, "setTheme"); return nil }
func (f *fakeCore) SetFontSize(p int) error { f.calls = append(f.calls, "setFontSize"); return nil }
func (f *fakeCore) SetZoom(z float64) error { f.calls = append(f.calls, "setZoom"); return nil }

func TestDPadPageTurns(t *testing.T) {
	core := &fakeCore{}
	s := New(core)

	if _, err := s.HandleButton(DPadRight); err != nil {
		t.Fatal(err)
	}
	if _, err := s.HandleButton(DPadLeft); err != nil {
		t.Fatal(err)
	}
	if len(core.calls) != 2 || core.calls[0] != "next" || core.calls[1] != "previous" {
		t.Errorf("calls: %v", core.calls)
	}
}

func TestCoarseJumps(t *testing.T) {
	core := &fakeCore{snap: reader.Snapshot{
		Format:      reader.FormatPDF,
		TotalUnits:  101,
		CurrentUnit: 51, // halfway
	}}
	s := New(core)

	if _, err := s.HandleButton(DPadDown); err != nil {
		t.Fatal(err)
	}
	if got := core.calls[len(core.calls)-1]; got != "gotoPercent(0.60)" {
		t.Errorf("down: %s", got)
	}

	if _, err := s.HandleButton(DPadUp); err != nil {
		t.Fatal(err)
	}
	if got := core.calls[len(core.calls)-1]; got != "gotoPercent(0.40)" {
		t.Errorf("up: %s", got)
	}
}

func TestCoarseJumpClampsAtEdges(t *testing.T) {
	core := &fakeCore{snap: reader.Snapshot{
		Format:      reader.FormatPDF,
		TotalUnits:  100,
		CurrentUnit: 100,
	}}
	s := New(core)

	if _, err := s.HandleButton(DPadDown); err != nil {
		t.Fatal(err)
	}
	if got := core.calls[len(core.calls)-1]; got != "gotoPercent(1.00)" {
		t.Errorf("past end: %s", got)
	}
}

func TestSelectAndBack(t *testing.T) {
	core := &fakeCore{}
	s := New(core)

	action, err := s.HandleButton(Select)
	if err != nil {
		t.Fatal(err)
	}
	if action != skin.ActionToggleChrome {
		t.Errorf("select: %v", action)
	}

	action, err = s.HandleButton(Back)
	if err != nil {
		t.Fatal(err)
	}
	if action != skin.ActionBack {
		t.Errorf("back: %v", action)
	}
	if len(core.calls) != 0 {
		t.Errorf("ui actions should not touch the core: %v", core.calls)
	}
}
