package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrPageOutOfRange is returned for page numbers outside the document.
var ErrPageOutOfRange = errors.New("page out of range")

var (
	inlineWhitespace = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines       = regexp.MustCompile(`\n{3,}`)
)

// Document provides page-level access to a parsed PDF.
type Document struct {
	reader *pdf.Reader
	closer io.Closer
}

// New parses PDF bytes held in memory.
func New(data []byte) (doc *Document, err error) {
	defer recoverParse(&err)
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return &Document{reader: reader}, nil
}

// Open parses the PDF stored at path. Callers must Close the document.
func Open(path string) (doc *Document, err error) {
	defer recoverParse(&err)
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return &Document{reader: reader, closer: file}, nil
}

// Close releases the underlying file, if any.
func (d *Document) Close() error {
	if d == nil || d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// PageText extracts the plain text of a 1-based page.
func (d *Document) PageText(number int) (text string, err error) {
	if number < 1 || number > d.reader.NumPage() {
		return "", fmt.Errorf("page %d of %d: %w", number, d.reader.NumPage(), ErrPageOutOfRange)
	}
	defer recoverParse(&err)
	page := d.reader.Page(number)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: %w", number, ErrPageOutOfRange)
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract page %d text: %w", number, err)
	}
	return normalize(raw), nil
}

// Pages extracts the text of every page in order. Pages that fail to extract are
// returned empty so page numbers stay aligned.
func (d *Document) Pages() []string {
	count := d.reader.NumPage()
	pages := make([]string, count)
	for i := 1; i <= count; i++ {
		text, err := d.PageText(i)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages
}

// ReadFile opens path and returns its pages.
func ReadFile(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	doc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.Pages(), nil
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineWhitespace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// The pdf package panics on some malformed inputs.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed pdf: %v", r)
	}
}
