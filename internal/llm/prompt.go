package llm

import (
	"fmt"
	"strings"
)

func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func answerPrompt(title, question, content string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question cannot be empty")
	}
	context := clipText(content, maxAnswerChars)
	if context == "" {
		return "", fmt.Errorf("document text empty; cannot answer question")
	}
	return buildAnswerPrompt(title, context, question), nil
}

func buildAnswerPrompt(title, context, question string) string {
	builder := strings.Builder{}
	builder.WriteString("You answer questions about a PDF document. Use ONLY the provided context.\n")
	builder.WriteString("The context is split into blocks that start with [Page N].\n")
	builder.WriteString("After each claim, cite the page it came from as [p. N]. ")
	builder.WriteString("If the answer isn't present, say you couldn't find it and cite nothing.\n\n")
	if title != "" {
		builder.WriteString("Document: " + title + "\n\n")
	}
	builder.WriteString("Context:\n")
	builder.WriteString(context)
	builder.WriteString("\n\nQuestion: " + question + "\nAnswer:")
	return builder.String()
}
