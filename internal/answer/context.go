package answer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultBudget bounds the context handed to the model, in runes.
const DefaultBudget = 60_000

// Chunk is one deduplicated paragraph and the page it came from.
type Chunk struct {
	ID    string
	Page  int
	Text  string
	order int
}

// Builder turns per-page text into a page-tagged context string.
type Builder struct {
	Budget int
}

var (
	paragraphSplit   = regexp.MustCompile(`\n{2,}`)
	whitespaceSanity = regexp.MustCompile(`\s+`)
	wordSplit        = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// NewBuilder returns a builder with budget, or DefaultBudget when budget is not positive.
func NewBuilder(budget int) *Builder {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Builder{Budget: budget}
}

// Chunks splits pages into paragraphs, dropping boilerplate and repeats. Page numbers
// are 1-based.
func (b *Builder) Chunks(pages []string) []Chunk {
	seen := map[string]bool{}
	var chunks []Chunk
	for idx, page := range pages {
		page = strings.ReplaceAll(page, "\r\n", "\n")
		for _, paragraph := range paragraphSplit.Split(page, -1) {
			trimmed := strings.TrimSpace(paragraph)
			if trimmed == "" || isBoilerplate(trimmed) {
				continue
			}
			hash := hashChunk(whitespaceSanity.ReplaceAllString(trimmed, " "))
			if seen[hash] {
				continue
			}
			seen[hash] = true
			chunks = append(chunks, Chunk{ID: hash, Page: idx + 1, Text: trimmed, order: len(chunks)})
		}
	}
	return chunks
}

// Build selects the paragraphs most related to question within the budget and renders
// them in page order under [Page N] headers.
func (b *Builder) Build(pages []string, question string) string {
	chunks := b.Chunks(pages)
	if len(chunks) == 0 {
		return ""
	}
	ranked := rankChunks(chunks, questionKeywords(question))

	remaining := b.Budget
	var selected []Chunk
	for _, chunk := range ranked {
		cost := runeLen(chunk.Text) + len(pageHeader(chunk.Page)) + 2
		if cost > remaining {
			if len(selected) == 0 {
				chunk.Text = string([]rune(chunk.Text)[:max(0, remaining-len(pageHeader(chunk.Page))-2)])
				selected = append(selected, chunk)
			}
			continue
		}
		selected = append(selected, chunk)
		remaining -= cost
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].order < selected[j].order })

	var builder strings.Builder
	current := 0
	for _, chunk := range selected {
		if chunk.Page != current {
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(pageHeader(chunk.Page))
			current = chunk.Page
		} else {
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
		builder.WriteString(chunk.Text)
	}
	return builder.String()
}

func pageHeader(page int) string {
	return fmt.Sprintf("[Page %d]", page)
}

func rankChunks(chunks []Chunk, keywords map[string]struct{}) []Chunk {
	type scored struct {
		chunk Chunk
		score int
	}
	list := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		list = append(list, scored{chunk: chunk, score: overlap(chunk.Text, keywords)})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score == list[j].score {
			return list[i].chunk.order < list[j].chunk.order
		}
		return list[i].score > list[j].score
	})
	out := make([]Chunk, 0, len(list))
	for _, entry := range list {
		out = append(out, entry.chunk)
	}
	return out
}

func overlap(text string, keywords map[string]struct{}) int {
	if len(keywords) == 0 {
		return 0
	}
	score := 0
	for _, word := range wordSplit.Split(strings.ToLower(text), -1) {
		if _, ok := keywords[word]; ok {
			score++
		}
	}
	return score
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "what": {}, "which": {}, "this": {},
	"that": {}, "are": {}, "was": {}, "were": {}, "does": {}, "can": {}, "you": {},
	"how": {}, "why": {}, "about": {}, "from": {}, "document": {}, "into": {},
}

func questionKeywords(question string) map[string]struct{} {
	keywords := map[string]struct{}{}
	for _, word := range wordSplit.Split(strings.ToLower(question), -1) {
		if len([]rune(word)) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		keywords[word] = struct{}{}
	}
	return keywords
}

func isBoilerplate(paragraph string) bool {
	lower := strings.ToLower(strings.TrimSpace(paragraph))
	switch {
	case lower == "":
		return true
	case strings.HasPrefix(lower, "copyright"), strings.HasPrefix(lower, "all rights reserved"):
		return true
	case strings.Contains(lower, "arxiv:"):
		return true
	}
	alpha := 0
	for _, r := range lower {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	// Page numbers, running headers and figure debris.
	if len(lower) <= 3 {
		return true
	}
	if alpha*5 < len(lower) {
		return true
	}
	return false
}

func hashChunk(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func runeLen(text string) int {
	return len([]rune(text))
}
