package guide

import (
	"fmt"
	"strings"

	"github.com/csheth/pdfchat/internal/docs"
)

// Starter is one suggested opening question for a freshly uploaded document.
type Starter struct {
	Label    string
	Question string
}

// Starters returns the suggestions shown on the ready screen, in display order.
func Starters() []Starter {
	return []Starter{
		{
			Label:    "Main topic",
			Question: "What is the main topic of this document?",
		},
		{
			Label:    "Key points",
			Question: "Can you summarize the key points?",
		},
		{
			Label:    "Conclusions",
			Question: "What are the conclusions or recommendations?",
		},
	}
}

// Intro is the line shown above the starters.
func Intro(doc docs.Document) string {
	name := strings.TrimSpace(doc.OriginalName)
	if name == "" {
		name = "Your document"
	}
	pages := ""
	if doc.PageCount == 1 {
		pages = " (1 page)"
	} else if doc.PageCount > 1 {
		pages = fmt.Sprintf(" (%d pages)", doc.PageCount)
	}
	return fmt.Sprintf("%s%s is ready. Ask anything, or start with one of these:", name, pages)
}
