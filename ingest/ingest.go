// Package ingest extracts plain text from source documents so they can be
// chunked into knowledge base entries.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for files whose extension has no extractor.
var ErrUnsupported = errors.New("unsupported document type")

// ErrNoText is returned when a document yields no usable text.
var ErrNoText = errors.New("no text extracted")

// Document is the text content of one source file.
type Document struct {
	// Source names the document in entry ids. For HTML it is the canonical
	// URL when the page declares one, otherwise the file name.
	Source string
	Title  string
	Text   string
}

// Supported reports whether path has an extension ExtractFile understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm", ".txt", ".md":
		return true
	}
	return false
}

// ExtractFile reads path and returns its text.
func ExtractFile(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	name := filepath.Base(path)

	var (
		doc Document
		err error
	)
	switch ext {
	case ".pdf":
		doc, err = extractPDF(path)
	case ".html", ".htm":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return Document{}, err
		}
		defer f.Close()
		doc, err = ExtractHTML(f)
	case ".txt", ".md":
		var b []byte
		b, err = os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		doc = ExtractPlain(string(b))
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", name, err)
	}

	if doc.Source == "" {
		doc.Source = name
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, fmt.Errorf("%s: %w", name, ErrNoText)
	}
	return doc, nil
}

func extractPDF(path string) (Document, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return Document{}, fmt.Errorf("read pdf buffer: %w", err)
	}
	text := cleanWhitespace(buf.String())
	return Document{Title: guessTitle(text), Text: text}, nil
}

// ExtractHTML pulls readable text out of an HTML page. Content under
// main or article is preferred when present.
func ExtractHTML(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	out := Document{
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Source: canonicalURL(doc),
	}

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var parts []string
	sel.Find("h1, h2, h3, h4, p, li, td, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, strings.TrimSpace(sel.Text()))
	}
	out.Text = cleanWhitespace(strings.Join(parts, "\n"))
	return out, nil
}

func canonicalURL(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// ExtractPlain handles text and markdown files. The first non-empty line
// becomes the title.
func ExtractPlain(s string) Document {
	s = cleanWhitespace(s)
	return Document{Title: guessTitle(s), Text: s}
}

var wsRX = regexp.MustCompile(`[ \t]*\n`)

func cleanWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(wsRX.ReplaceAllString(s, "\n"))
}

const maxTitleRunes = 120

func guessTitle(s string) string {
	line := strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
	line = strings.TrimLeft(line, "# ")
	if utf8.RuneCountInString(line) > maxTitleRunes {
		line = string([]rune(line)[:maxTitleRunes])
	}
	return line
}
