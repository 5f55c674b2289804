package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/csheth/pdfchat/internal/docs"
)

// maxRangeSpan keeps "pp. 1-400" from producing hundreds of citations.
const maxRangeSpan = 10

var (
	citationMarker = regexp.MustCompile(`(?i)[\[(]\s*(?:pp?\.?|pages?)\s*(\d+(?:\s*(?:-|–|,|and)\s*\d+)*)\s*[\])]`)
	citationNumber = regexp.MustCompile(`\d+|-|–`)
)

// ExtractCitations returns the pages cited in text as "[p. N]", "[pp. 4-5]", "(page N)"
// and similar markers, in first-seen order without duplicates. Pages outside
// [1, pageCount] are dropped; a non-positive pageCount keeps every positive page.
func ExtractCitations(text string, pageCount int) []docs.Citation {
	seen := map[int]bool{}
	var out []docs.Citation
	add := func(page int) {
		if page < 1 || (pageCount > 0 && page > pageCount) || seen[page] {
			return
		}
		seen[page] = true
		out = append(out, docs.Citation(strconv.Itoa(page)))
	}

	for _, match := range citationMarker.FindAllStringSubmatch(text, -1) {
		tokens := citationNumber.FindAllString(match[1], -1)
		prev := -1
		rangeNext := false
		for _, token := range tokens {
			if token == "-" || token == "–" {
				rangeNext = prev > 0
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(token))
			if err != nil {
				continue
			}
			if rangeNext && n > prev && n-prev <= maxRangeSpan {
				for p := prev + 1; p <= n; p++ {
					add(p)
				}
			} else {
				add(n)
			}
			rangeNext = false
			prev = n
		}
	}
	return out
}
