// Package pdftext extracts searchable per-page text from PDF payloads.
//
// It backs host-side search for PDF sessions: the surface renders the
// document, but scanning every page for a query is cheaper and more
// reliable done here, against text pulled straight out of the content
// streams. Extraction is best-effort: a page whose stream yields no
// text simply never matches.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document holds the extracted text of one PDF, one entry per page.
type Document struct {
	pages []string
}

// LoadBytes parses and validates a PDF payload and extracts the text of
// every page. The payload itself is not retained.
func LoadBytes(data []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdftext: read: %w", err)
	}

	pages := make([]string, ctx.PageCount)
	for n := 1; n <= ctx.PageCount; n++ {
		pages[n-1] = pageText(ctx, n)
	}
	return &Document{pages: pages}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// PageText returns the extracted text of page n (1-based), or "" when n
// is out of range or the page carried no extractable text.
func (d *Document) PageText(n int) string {
	if n < 1 || n > len(d.pages) {
		return ""
	}
	return d.pages[n-1]
}

// Search returns the 1-based pages containing query, ascending. The
// match is case-insensitive. An empty query matches nothing.
func (d *Document) Search(query string) []int {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var hits []int
	for i, text := range d.pages {
		if strings.Contains(strings.ToLower(text), query) {
			hits = append(hits, i+1)
		}
	}
	return hits
}

func pageText(ctx *model.Context, n int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, n)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return parseStream(data)
}

// literalRe matches parenthesised PDF string literals.
var literalRe = regexp.MustCompile(`\(([^)]*)\)`)

// parseStream walks a content stream line by line and collects the
// string arguments of the text-showing operators Tj, TJ and '.
// Positioning operators (Td, TD, T*) become whitespace so words on
// separate lines don't fuse.
func parseStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodeLiteral(m[1]))
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}
	}
	return normalize(sb.String())
}

// decodeLiteral resolves the escape sequences PDF string literals allow:
// the named escapes, escaped delimiters and up to three octal digits.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 == len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				break
			}
			val := int(c - '0')
			for d := 0; d < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; d++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// normalize collapses whitespace runs to single spaces and drops
// non-printable runes.
func normalize(text string) string {
	var sb strings.Builder
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !space && sb.Len() > 0 {
				sb.WriteByte(' ')
				space = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(sb.String())
}
