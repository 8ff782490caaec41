// Package cbzfile opens comic book archives and produces an ordered
// page list for the rendering surface.
//
// Only the zip-based CBZ container is supported. RAR archives carrying
// the .cbr extension are a deliberate dead end: detection succeeds,
// opening returns ErrRAR, and the caller surfaces it as an unsupported
// format with advice rather than a failure.
package cbzfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ErrRAR marks a RAR archive (usually a .cbr) handed to the CBZ opener.
// Callers should treat it as "unsupported format", not as corruption.
var ErrRAR = fmt.Errorf("cbzfile: RAR archive; convert to CBZ to read it")

var rarMagic = []byte("Rar!")

// Page is one image entry of the archive, in reading order.
type Page struct {
	// Name is the entry path inside the archive.
	Name string
	// Index is the 0-based position after sorting.
	Index int
	// Data is the raw image payload.
	Data []byte
}

// Archive is a fully extracted comic book.
type Archive struct {
	Pages []Page
}

// IsRAR reports whether name or the payload head identifies a RAR
// archive. Checking the magic as well as the extension catches .cbz
// files that are really renamed .cbr files.
func IsRAR(name string, head []byte) bool {
	if strings.EqualFold(path.Ext(name), ".cbr") {
		return true
	}
	return bytes.HasPrefix(head, rarMagic)
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".avif": true,
}

// Open extracts the image pages of a CBZ payload in natural name order.
// The progress callback, when non-nil, receives a fraction in [0,1]
// after each extracted page. A RAR payload returns ErrRAR; an archive
// with no image entries is an error.
func Open(name string, data []byte, progress func(float64)) (*Archive, error) {
	if IsRAR(name, data) {
		return nil, ErrRAR
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("cbzfile: open %s: %w", name, err)
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		// Mac resource forks and hidden files are junk, not pages.
		if strings.HasPrefix(base, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if imageExts[strings.ToLower(path.Ext(f.Name))] {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("cbzfile: %s has no image pages", name)
	}

	sort.Slice(entries, func(i, j int) bool {
		return naturalLess(entries[i].Name, entries[j].Name)
	})

	a := &Archive{Pages: make([]Page, 0, len(entries))}
	for i, f := range entries {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("cbzfile: extract %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("cbzfile: extract %s: %w", f.Name, err)
		}
		a.Pages = append(a.Pages, Page{Name: f.Name, Index: i, Data: buf.Bytes()})
		if progress != nil {
			progress(float64(i+1) / float64(len(entries)))
		}
	}
	return a, nil
}

// naturalLess orders names so that embedded digit runs compare
// numerically: page2 < page10, unlike plain lexicographic order.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			an, arest := leadingInt(a)
			bn, brest := leadingInt(b)
			if an != bn {
				return an < bn
			}
			a, b = arest, brest
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func leadingInt(s string) (n uint64, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		n = n*10 + uint64(s[i]-'0')
		i++
	}
	return n, s[i:]
}
