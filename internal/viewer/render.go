package viewer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/pdfchat/internal/pdftext"
)

// ErrNoText means the page has no extractable text and the fallback should be offered.
var ErrNoText = errors.New("page has no extractable text")

// Pages holds the extracted text of a cached PDF.
type Pages struct {
	Path  string
	texts []string
}

// Load extracts every page of the PDF at path.
func Load(path string) (*Pages, error) {
	texts, err := pdftext.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Pages{Path: path, texts: texts}, nil
}

func (p *Pages) Count() int {
	if p == nil {
		return 0
	}
	return len(p.texts)
}

// Render returns page n word-wrapped to width columns.
func (p *Pages) Render(n, width int) (string, error) {
	if p == nil || n < 1 || n > len(p.texts) {
		return "", fmt.Errorf("page %d: %w", n, pdftext.ErrPageOutOfRange)
	}
	text := strings.TrimSpace(p.texts[n-1])
	if text == "" {
		return "", ErrNoText
	}
	return wordwrap.String(text, width), nil
}
