package anchor

import "testing"

func TestRoundTrip(t *testing.T) {
	anchors := []Anchor{
		CFI("epubcfi(/6/14!/4/2/14/1:0)"),
		Page{Page: 1},
		Page{Page: 312, Offset: 44},
		PageIndex(0),
		PageIndex(17),
	}

	for _, a := range anchors {
		parsed, err := Parse(a.String())
		if err != nil {
			t.Fatalf("parse %q: %v", a.String(), err)
		}
		if parsed != a {
			t.Errorf("round trip %q: got %#v, want %#v", a.String(), parsed, a)
		}
		if parsed.Kind() != a.Kind() {
			t.Errorf("kind of %q: got %s, want %s", a.String(), parsed.Kind(), a.Kind())
		}
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"",
		"noprefix",
		"epub:",
		"pdf:zero",
		"pdf:0",
		"pdf:-3",
		"pdf:4@-1",
		"cbz:-1",
		"cbz:two",
		"mobi:12",
	}
	for _, s := range bad {
		if a, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): got %#v, want error", s, a)
		}
	}
}

func TestLabels(t *testing.T) {
	if got := (Page{Page: 12}).Label(); got != "Page 12" {
		t.Errorf("pdf label: got %q", got)
	}
	// CBZ indices are 0-based internally, 1-based for display.
	if got := PageIndex(0).Label(); got != "Page 1" {
		t.Errorf("cbz label: got %q", got)
	}
	if got := CFI("epubcfi(/6/2)").Label(); got != "Location" {
		t.Errorf("epub label: got %q", got)
	}
}
