package tui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

const (
	layoutChrome     = 6
	composerRows     = 3
	viewerHeaderRows = 2
	minPanelRows     = 3
)

// pageLayout splits the window into the chat column and the viewer column. Narrow
// windows stack the viewer above the chat.
type pageLayout struct {
	windowWidth      int
	windowHeight     int
	chatWidth        int
	viewerWidth      int
	transcriptHeight int
	pageHeight       int
	stacked          bool
}

func newPageLayout() pageLayout {
	return pageLayout{
		chatWidth:        60,
		viewerWidth:      40,
		transcriptHeight: 15,
		pageHeight:       15,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	inner := width - panelHorizontalPadding
	if inner < minPanelWidth {
		inner = minPanelWidth
	}
	usable := height - layoutChrome
	if usable < 10 {
		usable = 10
	}
	if inner < 2*minPanelWidth+columnGap {
		l.stacked = true
		l.chatWidth = inner
		l.viewerWidth = inner
		half := usable / 2
		l.transcriptHeight = atLeast(half-composerRows, minPanelRows)
		l.pageHeight = atLeast(usable-half-viewerHeaderRows, minPanelRows)
		return
	}
	l.stacked = false
	l.chatWidth = inner * 55 / 100
	l.viewerWidth = inner - l.chatWidth - columnGap
	l.transcriptHeight = atLeast(usable-composerRows, minPanelRows)
	l.pageHeight = atLeast(usable-viewerHeaderRows, minPanelRows)
}

func atLeast(value, floor int) int {
	if value < floor {
		return floor
	}
	return value
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func wrapText(text string, width int) string {
	if width < 10 {
		width = 10
	}
	return wordwrap.String(strings.TrimSpace(text), width)
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
