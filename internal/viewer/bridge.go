package viewer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csheth/pdfchat/internal/docs"
)

// Bridge forwards citation activations from the chat panel to whoever owns the
// navigated page. A zero Bridge is inert.
type Bridge struct {
	Navigate func(docs.Citation)
}

// Activate navigates to c and returns the confirmation notice. It reports false when
// no navigation callback is wired.
func (b Bridge) Activate(c docs.Citation) (string, bool) {
	if b.Navigate == nil {
		return "", false
	}
	b.Navigate(c)
	return fmt.Sprintf("Navigated to page %s", pageLabel(c)), true
}

// Banner is the viewer header shown after a citation moved the page.
func Banner(c docs.Citation) string {
	return fmt.Sprintf("Citation: viewing page %s", pageLabel(c))
}

func pageLabel(c docs.Citation) string {
	if n, ok := c.Page(); ok {
		return strconv.Itoa(n)
	}
	return strings.TrimSpace(string(c))
}
