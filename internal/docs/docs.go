package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Status tracks the server-side processing state of an uploaded document.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Ready reports whether the document bytes are guaranteed to be retrievable.
func (s Status) Ready() bool {
	return s == StatusReady
}

// Document is an uploaded PDF as known to the document store.
type Document struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	Status       Status    `json:"status"`
	Size         int64     `json:"size"`
	PageCount    int       `json:"pageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known authors.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Citation is a page reference attached to an assistant message.
type Citation string

// Page returns the numeric page for the citation, when it holds one.
func (c Citation) Page() (int, bool) {
	value := strings.TrimSpace(string(c))
	value = strings.TrimPrefix(strings.ToLower(value), "p.")
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts both string and integer page references.
func (c *Citation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Citation(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("citation must be a string or number: %w", err)
	}
	*c = Citation(n.String())
	return nil
}

// Message is one conversation turn for a document.
type Message struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Citations  []Citation `json:"citations,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// DocumentStore creates documents and serves their bytes.
type DocumentStore interface {
	CreateDocument(ctx context.Context, filename string, content io.Reader) (Document, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	GetDocumentBytes(ctx context.Context, id string) (io.ReadCloser, error)
}

// MessageStore appends and lists messages for a document. Listing returns messages in
// creation order.
type MessageStore interface {
	ListMessages(ctx context.Context, documentID string) ([]Message, error)
	CreateMessage(ctx context.Context, documentID string, role Role, content string, citations []Citation) (Message, error)
}
