package viewer

import "github.com/csheth/pdfchat/internal/docs"

const (
	DefaultZoom = 100
	ZoomStep    = 25
	MinZoom     = 50
	MaxZoom     = 200

	minWrapWidth = 16
)

// Viewer tracks the displayed page and zoom level. Page and zoom move independently:
// zoom actions never change the page and page syncs never change the zoom.
type Viewer struct {
	page      int
	zoom      int
	pageCount int
	cited     bool
}

// New returns a viewer on page 1 at the default zoom. A non-positive pageCount leaves
// the page unbounded above.
func New(pageCount int) *Viewer {
	return &Viewer{page: 1, zoom: DefaultZoom, pageCount: pageCount}
}

func (v *Viewer) Page() int      { return v.page }
func (v *Viewer) Zoom() int      { return v.zoom }
func (v *Viewer) PageCount() int { return v.pageCount }

// Cited reports whether the current page was reached through a citation.
func (v *Viewer) Cited() bool { return v.cited }

func (v *Viewer) ZoomIn() int {
	v.zoom = clamp(v.zoom+ZoomStep, MinZoom, MaxZoom)
	return v.zoom
}

func (v *Viewer) ZoomOut() int {
	v.zoom = clamp(v.zoom-ZoomStep, MinZoom, MaxZoom)
	return v.zoom
}

func (v *Viewer) NextPage() int {
	return v.GoTo(v.page + 1)
}

func (v *Viewer) PrevPage() int {
	return v.GoTo(v.page - 1)
}

// GoTo moves to page n within range and clears the citation banner.
func (v *Viewer) GoTo(n int) int {
	v.page = v.clampPage(n)
	v.cited = false
	return v.page
}

// Sync moves to the page named by c. Non-numeric citations leave the viewer untouched.
func (v *Viewer) Sync(c docs.Citation) bool {
	n, ok := c.Page()
	if !ok {
		return false
	}
	v.page = v.clampPage(n)
	v.cited = true
	return true
}

// WrapWidth returns the text column width for a panel at the current zoom.
func (v *Viewer) WrapWidth(panelWidth int) int {
	if panelWidth <= 0 {
		return minWrapWidth
	}
	width := panelWidth * 100 / v.zoom
	if width > panelWidth {
		width = panelWidth
	}
	if width < minWrapWidth {
		width = minWrapWidth
	}
	return width
}

func (v *Viewer) clampPage(n int) int {
	if n < 1 {
		return 1
	}
	if v.pageCount > 0 && n > v.pageCount {
		return v.pageCount
	}
	return n
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
