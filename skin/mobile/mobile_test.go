package mobile

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
	f.calls = append(f.calls, fmt.Sprintf("gotoPercent(%g)", p))
	return nil
}
func (f *fakeCore) Search(q string) error { f.calls = append(f.calls, "search("+q+")"); return nil }
func (f *fakeCore) NextMatch() error      { f.calls = append(f.calls, "nextMatch"); return nil }
func (f *fakeCore) PrevMatch() error      { f.calls = append(f.calls, "prevMatch"); return nil }
func (f *fakeCore) SetTheme(t string) error {
	f.calls = append(f.calls, "setTheme("+t+")")
	return nil
}
func (f *fakeCore) SetFontSize(p int) error {
	f.calls = append(f.calls, fmt.Sprintf("setFontSize(%d)", p))
	return nil
}
func (f *fakeCore) SetZoom(z float64) error {
	f.calls = append(f.calls, fmt.Sprintf("setZoom(%g)", z))
	return nil
}

func (f *fakeCore) last(t *testing.T) string {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("no core call recorded")
	}
	return f.calls[len(f.calls)-1]
}

func TestTapZones(t *testing.T) {
	tests := []struct {
		x          float64
		wantCall   string
		wantAction skin.Action
	}{
		{50, "previous", skin.ActionNone},
		{350, "", skin.ActionToggleChrome},
		{900, "next", skin.ActionNone},
	}
	for _, tt := range tests {
		core := &fakeCore{}
		s := New(core)
		action, err := s.HandleTap(tt.x, 1000)
		if err != nil {
			t.Fatalf("tap at %g: %v", tt.x, err)
		}
		if action != tt.wantAction {
			t.Errorf("tap at %g: action %v, want %v", tt.x, action, tt.wantAction)
		}
		if tt.wantCall == "" {
			if len(core.calls) != 0 {
				t.Errorf("tap at %g called %v", tt.x, core.calls)
			}
		} else if core.last(t) != tt.wantCall {
			t.Errorf("tap at %g: called %s, want %s", tt.x, core.last(t), tt.wantCall)
		}
	}
}

func TestTapZeroWidthIgnored(t *testing.T) {
	core := &fakeCore{}
	s := New(core)
	if _, err := s.HandleTap(10, 0); err != nil {
		t.Fatal(err)
	}
	if len(core.calls) != 0 {
		t.Errorf("calls: %v", core.calls)
	}
}

func TestSwipes(t *testing.T) {
	core := &fakeCore{}
	s := New(core)

	if err := s.HandleSwipe(SwipeLeft); err != nil {
		t.Fatal(err)
	}
	if core.last(t) != "next" {
		t.Errorf("swipe left: %s", core.last(t))
	}

	if err := s.HandleSwipe(SwipeRight); err != nil {
		t.Fatal(err)
	}
	if core.last(t) != "previous" {
		t.Errorf("swipe right: %s", core.last(t))
	}
}

func TestPinchAndSeek(t *testing.T) {
	core := &fakeCore{}
	s := New(core)

	if err := s.HandlePinch(1.5); err != nil {
		t.Fatal(err)
	}
	if core.last(t) != "setZoom(1.5)" {
		t.Errorf("pinch: %s", core.last(t))
	}

	if err := s.HandleSeek(0.25); err != nil {
		t.Fatal(err)
	}
	if core.last(t) != "gotoPercent(0.25)" {
		t.Errorf("seek: %s", core.last(t))
	}
}
