package docs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/csheth/pdfchat/internal/pdftext/pdftest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateDocumentStoresBytes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	payload := pdftest.Build("one", "two", "three")

	doc, err := store.CreateDocument(ctx, "report.pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if doc.ID == "" || doc.OriginalName != "report.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !doc.Status.Ready() || doc.PageCount != 3 || doc.Size != int64(len(payload)) {
		t.Fatalf("document metadata mismatch: %+v", doc)
	}

	fetched, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if fetched.OriginalName != doc.OriginalName || fetched.PageCount != 3 {
		t.Fatalf("fetched document mismatch: %+v", fetched)
	}

	rc, err := store.GetDocumentBytes(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentBytes() error = %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from upload")
	}
}

func TestCreateDocumentRejectsInvalidInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		filename string
		body     []byte
	}{
		{name: "missing name", filename: " ", body: pdftest.Build("x")},
		{name: "empty", filename: "a.pdf", body: nil},
		{name: "not pdf", filename: "a.pdf", body: []byte("hello")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.CreateDocument(ctx, tc.filename, bytes.NewReader(tc.body))
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDocument error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetDocumentBytes(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDocumentBytes error = %v, want ErrNotFound", err)
	}
	if _, err := store.CreateMessage(ctx, "missing", RoleUser, "hi", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CreateMessage error = %v, want ErrNotFound", err)
	}
}

func TestMessagesKeepCreationOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "report.pdf", bytes.NewReader(pdftest.Build("p1")))
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if _, err := store.CreateMessage(ctx, doc.ID, RoleUser, "Summarize section 2", nil); err != nil {
		t.Fatalf("CreateMessage user: %v", err)
	}
	if _, err := store.CreateMessage(ctx, doc.ID, RoleAssistant, "Section 2 covers gophers.", []Citation{"4", "5"}); err != nil {
		t.Fatalf("CreateMessage assistant: %v", err)
	}
	if _, err := store.CreateMessage(ctx, doc.ID, RoleUser, "Thanks", nil); err != nil {
		t.Fatalf("CreateMessage user: %v", err)
	}

	messages, err := store.ListMessages(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	roles := []Role{messages[0].Role, messages[1].Role, messages[2].Role}
	if roles[0] != RoleUser || roles[1] != RoleAssistant || roles[2] != RoleUser {
		t.Fatalf("unexpected role order: %v", roles)
	}
	if got := messages[1].Citations; len(got) != 2 || got[0] != "4" || got[1] != "5" {
		t.Fatalf("citations mismatch: %#v", got)
	}
	if messages[0].Citations != nil {
		t.Fatalf("user message should carry no citations: %#v", messages[0].Citations)
	}
}

func TestCreateMessageValidatesInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc, err := store.CreateDocument(ctx, "report.pdf", bytes.NewReader(pdftest.Build("p1")))
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if _, err := store.CreateMessage(ctx, doc.ID, Role("system"), "hi", nil); !IsValidation(err) {
		t.Fatalf("expected validation error for role, got %v", err)
	}
	if _, err := store.CreateMessage(ctx, doc.ID, RoleUser, strings.Repeat(" ", 3), nil); !IsValidation(err) {
		t.Fatalf("expected validation error for blank content, got %v", err)
	}
}
