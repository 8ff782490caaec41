package epubfile

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

const testOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Moby-Dick</dc:title>
    <dc:creator>Herman Melville</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNav = `<html xmlns:epub="http://www.idpf.org/2007/ops"><body>
<nav epub:type="toc">
  <ol>
    <li><a href="text/ch1.xhtml">Loomings</a>
      <ol><li><a href="text/ch1.xhtml#pt2">The Carpet-Bag</a></li></ol>
    </li>
    <li><a href="text/ch2.xhtml">The Spouter-Inn</a></li>
  </ol>
</nav>
</body></html>`

func makeEpub(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	// mimetype first, matching real producers.
	if body, ok := entries["mimetype"]; ok {
		f, err := w.Create("mimetype")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	for name, body := range entries {
		if name == "mimetype" {
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func defaultEntries() map[string]string {
	return map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`,
		"OEBPS/content.opf":    testOPF,
		"OEBPS/nav.xhtml":      testNav,
		"OEBPS/text/ch1.xhtml": `<html><body><p id="pt1">Call me Ishmael.</p></body></html>`,
		"OEBPS/text/ch2.xhtml": `<html><body><p>Entering the Spouter-Inn.</p><script>alert(1)</script></body></html>`,
	}
}

func TestOpenParsesPackage(t *testing.T) {
	b, err := Open(makeEpub(t, defaultEntries()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if b.Title != "Moby-Dick" || b.Author != "Herman Melville" || b.Language != "en" {
		t.Errorf("metadata: %q / %q / %q", b.Title, b.Author, b.Language)
	}
	if b.RTL {
		t.Error("ltr book reported rtl")
	}
	if len(b.Spine) != 2 {
		t.Fatalf("spine: got %d entries", len(b.Spine))
	}
	if b.Spine[0].ID != "ch1" || b.Spine[1].ID != "ch2" {
		t.Errorf("spine order: %s, %s", b.Spine[0].ID, b.Spine[1].ID)
	}
}

func TestOpenTOC(t *testing.T) {
	b, err := Open(makeEpub(t, defaultEntries()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(b.TOC) != 3 {
		t.Fatalf("toc: got %d entries, want 3: %+v", len(b.TOC), b.TOC)
	}
	if b.TOC[0].Title != "Loomings" || b.TOC[0].Href != "text/ch1.xhtml" {
		t.Errorf("toc[0]: %+v", b.TOC[0])
	}
	if b.TOC[1].Title != "The Carpet-Bag" || b.TOC[1].Level <= b.TOC[0].Level {
		t.Errorf("nested entry not deeper: %+v vs %+v", b.TOC[1], b.TOC[0])
	}
	if b.TOC[2].Title != "The Spouter-Inn" {
		t.Errorf("toc[2]: %+v", b.TOC[2])
	}
}

func TestChapterHTMLSanitized(t *testing.T) {
	b, err := Open(makeEpub(t, defaultEntries()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	h1, err := b.ChapterHTML(0)
	if err != nil {
		t.Fatalf("chapter 0: %v", err)
	}
	if !strings.Contains(h1, "Call me Ishmael.") {
		t.Errorf("chapter text lost: %q", h1)
	}
	if !strings.Contains(h1, `id="pt1"`) {
		t.Errorf("id attribute stripped: %q", h1)
	}

	h2, err := b.ChapterHTML(1)
	if err != nil {
		t.Fatalf("chapter 1: %v", err)
	}
	if strings.Contains(h2, "<script") || strings.Contains(h2, "alert(1)") {
		t.Errorf("script survived sanitisation: %q", h2)
	}

	if _, err := b.ChapterHTML(2); err == nil {
		t.Error("out-of-range chapter should error")
	}
}

func TestOpenRejectsBadMimetype(t *testing.T) {
	entries := defaultEntries()
	entries["mimetype"] = "application/zip"
	if _, err := Open(makeEpub(t, entries)); err == nil {
		t.Fatal("wrong mimetype accepted")
	}

	delete(entries, "mimetype")
	if _, err := Open(makeEpub(t, entries)); err == nil {
		t.Fatal("missing mimetype accepted")
	}
}

func TestOpenRejectsDanglingSpineRef(t *testing.T) {
	entries := defaultEntries()
	entries["OEBPS/content.opf"] = strings.Replace(testOPF, `idref="ch2"`, `idref="ghost"`, 1)
	if _, err := Open(makeEpub(t, entries)); err == nil {
		t.Fatal("dangling spine ref accepted")
	}
}

func TestOpenRTLProgression(t *testing.T) {
	entries := defaultEntries()
	entries["OEBPS/content.opf"] = strings.Replace(testOPF, "<spine>", `<spine page-progression-direction="rtl">`, 1)
	b, err := Open(makeEpub(t, entries))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !b.RTL {
		t.Error("rtl progression not detected")
	}
}

func TestResource(t *testing.T) {
	b, err := Open(makeEpub(t, defaultEntries()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := b.Resource("text/ch1.xhtml")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if !strings.Contains(string(data), "Ishmael") {
		t.Errorf("unexpected resource body: %q", data)
	}
	if _, err := b.Resource("missing.css"); err == nil {
		t.Error("missing resource should error")
	}
}
