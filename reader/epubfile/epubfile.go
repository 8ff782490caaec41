// Package epubfile opens EPUB containers and exposes the pieces the
// reader needs: metadata, the spine in reading order, sanitised chapter
// HTML for the surface and a table of contents for the skins.
//
// Chapter markup is passed through a sanitiser before it ever reaches
// the rendering surface. The surface is sandboxed, but the HTML inside
// an EPUB is arbitrary third-party content and script in it would run
// with the injection host's own helpers in scope.
package epubfile

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const epubMimetype = "application/epub+zip"

// Chapter is one spine entry in reading order.
type Chapter struct {
	ID        string
	Href      string
	MediaType string
}

// TOCEntry is one row of the navigation document, flattened with its
// nesting depth.
type TOCEntry struct {
	Title string
	Href  string
	Level int
}

// Book is an opened EPUB. It is not safe for concurrent use.
type Book struct {
	Title    string
	Author   string
	Language string
	// RTL is true when the package declares right-to-left page
	// progression (common for manga).
	RTL bool

	Spine []Chapter
	TOC   []TOCEntry

	zr     *zip.Reader
	byName map[string]*zip.File
	opfDir string
	policy *bluemonday.Policy
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Title    string `xml:"title"`
		Creator  string `xml:"creator"`
		Language string `xml:"language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Direction string `xml:"page-progression-direction,attr"`
		ItemRefs  []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// Open parses an EPUB payload. The mimetype entry must declare
// application/epub+zip; a wrong or missing declaration is an error
// because everything downstream assumes the container layout.
func Open(data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("epubfile: open zip: %w", err)
	}

	b := &Book{
		zr:     zr,
		byName: make(map[string]*zip.File, len(zr.File)),
		policy: chapterPolicy(),
	}
	for _, f := range zr.File {
		b.byName[f.Name] = f
	}

	mt, err := b.readEntry("mimetype")
	if err != nil {
		return nil, fmt.Errorf("epubfile: missing mimetype entry: %w", err)
	}
	if got := strings.TrimSpace(string(mt)); got != epubMimetype {
		return nil, fmt.Errorf("epubfile: mimetype %q, want %q", got, epubMimetype)
	}

	opfPath, err := b.opfPath()
	if err != nil {
		return nil, err
	}
	b.opfDir = path.Dir(opfPath)
	if b.opfDir == "." {
		b.opfDir = ""
	}

	opfData, err := b.readEntry(opfPath)
	if err != nil {
		return nil, fmt.Errorf("epubfile: read package document: %w", err)
	}
	var pkg opfPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("epubfile: parse package document: %w", err)
	}

	b.Title = strings.TrimSpace(pkg.Metadata.Title)
	b.Author = strings.TrimSpace(pkg.Metadata.Creator)
	b.Language = strings.TrimSpace(pkg.Metadata.Language)
	b.RTL = pkg.Spine.Direction == "rtl"

	byID := make(map[string]Chapter, len(pkg.Manifest.Items))
	var navHref string
	for _, it := range pkg.Manifest.Items {
		byID[it.ID] = Chapter{ID: it.ID, Href: it.Href, MediaType: it.MediaType}
		if strings.Contains(it.Properties, "nav") {
			navHref = it.Href
		}
	}
	for _, ref := range pkg.Spine.ItemRefs {
		ch, ok := byID[ref.IDRef]
		if !ok {
			return nil, fmt.Errorf("epubfile: spine references unknown item %q", ref.IDRef)
		}
		b.Spine = append(b.Spine, ch)
	}
	if len(b.Spine) == 0 {
		return nil, fmt.Errorf("epubfile: empty spine")
	}

	// A missing or unparsable nav document leaves the TOC empty; the
	// book still reads front to back.
	if navHref != "" {
		if navData, err := b.readEntry(b.resolve(navHref)); err == nil {
			b.TOC = parseNav(navData)
		}
	}

	return b, nil
}

// ChapterHTML returns the sanitised markup of spine entry i.
func (b *Book) ChapterHTML(i int) (string, error) {
	if i < 0 || i >= len(b.Spine) {
		return "", fmt.Errorf("epubfile: chapter %d out of range [0,%d)", i, len(b.Spine))
	}
	raw, err := b.readEntry(b.resolve(b.Spine[i].Href))
	if err != nil {
		return "", fmt.Errorf("epubfile: read chapter %d: %w", i, err)
	}
	return b.policy.Sanitize(string(raw)), nil
}

// Resource returns a raw archive entry by href relative to the package
// document, for images and stylesheets the surface requests.
func (b *Book) Resource(href string) ([]byte, error) {
	return b.readEntry(b.resolve(href))
}

func (b *Book) resolve(href string) string {
	if b.opfDir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(b.opfDir, href))
}

func (b *Book) readEntry(name string) ([]byte, error) {
	f, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("entry %q not in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *Book) opfPath() (string, error) {
	data, err := b.readEntry("META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("epubfile: read container.xml: %w", err)
	}
	var c container
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("epubfile: parse container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("epubfile: container.xml names no rootfile")
	}
	return c.Rootfiles[0].FullPath, nil
}

// chapterPolicy is the sanitiser for chapter markup: user-generated
// content rules plus the id attributes CFI anchors point at.
func chapterPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").Globally()
	p.AllowAttrs("epub:type").Globally()
	return p
}

// parseNav flattens the EPUB3 navigation document: every anchor inside
// the toc nav becomes one entry, with nesting depth taken from enclosing
// ol elements.
func parseNav(data []byte) []TOCEntry {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	nav := findTocNav(doc)
	if nav == nil {
		return nil
	}

	var entries []TOCEntry
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				switch c.Data {
				case "ol", "ul":
					walk(c, depth+1)
					continue
				case "a":
					entries = append(entries, TOCEntry{
						Title: strings.TrimSpace(textContent(c)),
						Href:  attr(c, "href"),
						Level: depth,
					})
				}
			}
			walk(c, depth)
		}
	}
	walk(nav, 0)
	return entries
}

// findTocNav locates the nav element typed as the table of contents,
// falling back to the first nav when the type attribute is absent.
func findTocNav(n *html.Node) *html.Node {
	var first, typed *html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "nav" {
			if first == nil {
				first = n
			}
			for _, a := range n.Attr {
				if (a.Key == "epub:type" || a.Key == "type") && a.Val == "toc" {
					if typed == nil {
						typed = n
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	if typed != nil {
		return typed
	}
	return first
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
