package loader

import (
	"archive/zip"
	"booksummarizer/internal/domain"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"mvdan.cc/xurls/v2"
)

const (
	containerPath = "META-INF/container.xml"

	textNodeName = "#text"
	lineBreakTag = "br"
)

var (
	urlRe         = xurls.Strict()
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	inlineSpaceRe = regexp.MustCompile(`[ \t\f\v]+`)
	sourceSpaceRe = regexp.MustCompile(`\s+`)

	// Elements that start and end a paragraph.
	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true,
		"caption": true, "dd": true, "div": true, "dl": true, "dt": true,
		"figcaption": true, "figure": true, "footer": true, "h1": true,
		"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"header": true, "hr": true, "li": true, "main": true, "ol": true,
		"p": true, "pre": true, "section": true, "table": true, "td": true,
		"th": true, "tr": true, "ul": true,
	}
	skippedTags = map[string]bool{
		"script": true, "style": true, "nav": true, "head": true, "#comment": true,
	}
)

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Titles   []string `xml:"metadata>title"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// EPUB loads the spine documents of an EPUB archive as sections, in reading order.
type EPUB struct{}

func (EPUB) Load(ctx context.Context, bookPath string) (domain.Document, error) {
	r, err := zip.OpenReader(bookPath)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: open epub %s: %w", domain.ErrIO, bookPath, err)
	}
	defer func() {
		_ = r.Close()
	}()

	doc, err := readEPUB(ctx, &r.Reader)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read epub %s: %w", domain.ErrIO, bookPath, err)
	}

	doc.Path = bookPath
	if doc.Title == "" {
		doc.Title = BookName(bookPath)
	}

	return doc, nil
}

func readEPUB(ctx context.Context, r *zip.Reader) (domain.Document, error) {
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	var c container
	if err := decodeXML(files, containerPath, &c); err != nil {
		return domain.Document{}, err
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return domain.Document{}, errors.New("container has no rootfile")
	}

	opfPath := c.Rootfiles[0].FullPath
	var pkg opfPackage
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return domain.Document{}, err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if !isHTML(item.MediaType) {
			continue
		}
		hrefs[item.ID] = item.Href
	}

	doc := domain.Document{}
	if len(pkg.Titles) > 0 {
		doc.Title = strings.TrimSpace(pkg.Titles[0])
	}

	baseDir := path.Dir(opfPath)
	for i, ref := range pkg.Spine {
		if err := ctx.Err(); err != nil {
			return domain.Document{}, err
		}

		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}

		name, err := resolveHref(baseDir, href)
		if err != nil {
			return domain.Document{}, err
		}

		text, err := readChapter(files, name)
		if err != nil {
			return domain.Document{}, err
		}
		if text == "" {
			continue
		}

		doc.Sections = append(doc.Sections, domain.Section{
			Text:   text,
			Source: name,
			Index:  i,
		})
	}

	return doc, nil
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	rc, err := openFile(files, name)
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	if err = xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}

	return nil
}

func openFile(files map[string]*zip.File, name string) (io.ReadCloser, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("file %s is not in archive", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	return rc, nil
}

func readChapter(files map[string]*zip.File, name string) (string, error) {
	rc, err := openFile(files, name)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rc.Close()
	}()

	html, err := goquery.NewDocumentFromReader(rc)
	if err != nil {
		return "", fmt.Errorf("create document from reader %s: %w", name, err)
	}

	return extractText(html), nil
}

// extractText keeps every text node of the body. Block elements separate
// paragraphs and <br> breaks the line.
func extractText(html *goquery.Document) string {
	w := &textWalker{}
	w.walk(html.Find("body"))
	w.flush()

	return strings.Join(w.paragraphs, "\n\n")
}

type textWalker struct {
	current    strings.Builder
	paragraphs []string
}

func (w *textWalker) walk(s *goquery.Selection) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		name := goquery.NodeName(child)

		switch {
		case name == textNodeName:
			w.current.WriteString(sourceSpaceRe.ReplaceAllString(child.Text(), " "))
		case name == lineBreakTag:
			w.current.WriteByte('\n')
		case skippedTags[name]:
		case blockTags[name]:
			w.flush()
			w.walk(child)
			w.flush()
		default:
			w.walk(child)
		}
	})
}

func (w *textWalker) flush() {
	if text := cleanText(w.current.String()); text != "" {
		w.paragraphs = append(w.paragraphs, text)
	}
	w.current.Reset()
}

// cleanText drops URLs and collapses whitespace, keeping paragraph breaks.
func cleanText(text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = inlineSpaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

func resolveHref(baseDir, href string) (string, error) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}

	unescaped, err := url.PathUnescape(href)
	if err != nil {
		return "", fmt.Errorf("unescape href %s: %w", href, err)
	}

	return path.Join(baseDir, unescaped), nil
}

func isHTML(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/xhtml+xml", "text/html", "application/x-dtbook+xml":
		return true
	default:
		return false
	}
}
