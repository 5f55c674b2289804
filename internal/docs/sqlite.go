package docs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/csheth/pdfchat/internal/pdftext"
)

// MaxDocumentBytes caps the size of an uploaded PDF.
const MaxDocumentBytes = 50 * 1024 * 1024

// SQLiteStore keeps documents and messages in a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ DocumentStore = (*SQLiteStore)(nil)
	_ MessageStore  = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at dataSourceName.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writers serialize on one connection; sqlite3 in-memory databases are per-connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY,
        original_name TEXT NOT NULL,
        status TEXT NOT NULL,
        size INTEGER NOT NULL,
        page_count INTEGER NOT NULL DEFAULT 0,
        content BLOB NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS messages (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL,
        document_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        citations_json TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME NOT NULL,
        FOREIGN KEY (document_id) REFERENCES documents (id)
    );

    CREATE INDEX IF NOT EXISTS messages_document_seq ON messages (document_id, seq);
    `
	_, err := s.db.Exec(schema)
	return err
}

// CreateDocument stores the PDF after checking it parses.
func (s *SQLiteStore) CreateDocument(ctx context.Context, filename string, content io.Reader) (Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return Document{}, &ValidationError{Field: "filename", Reason: "is required"}
	}
	data, err := io.ReadAll(io.LimitReader(content, MaxDocumentBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return Document{}, &ValidationError{Field: "file", Reason: "is empty"}
	}
	if len(data) > MaxDocumentBytes {
		return Document{}, &ValidationError{Field: "file", Reason: "exceeds 50MB"}
	}
	parsed, err := pdftext.New(data)
	if err != nil {
		return Document{}, &ValidationError{Field: "file", Reason: "is not a readable PDF"}
	}

	doc := Document{
		ID:           uuid.NewString(),
		OriginalName: filename,
		Status:       StatusReady,
		Size:         int64(len(data)),
		PageCount:    parsed.PageCount(),
		CreatedAt:    s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (id, original_name, status, size, page_count, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		doc.ID, doc.OriginalName, string(doc.Status), doc.Size, doc.PageCount, data, doc.CreatedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	var status string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, original_name, status, size, page_count, created_at FROM documents WHERE id = ?", id,
	).Scan(&doc.ID, &doc.OriginalName, &status, &doc.Size, &doc.PageCount, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Status = Status(status)
	return doc, nil
}

func (s *SQLiteStore) GetDocumentBytes(ctx context.Context, id string) (io.ReadCloser, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT content FROM documents WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read document bytes: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ListMessages returns the conversation in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, documentID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, role, content, citations_json, created_at FROM messages WHERE document_id = ? ORDER BY seq ASC",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var role, citationsJSON string
		if err := rows.Scan(&msg.ID, &msg.DocumentID, &role, &msg.Content, &citationsJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Role = Role(role)
		if err := json.Unmarshal([]byte(citationsJSON), &msg.Citations); err != nil {
			return nil, fmt.Errorf("failed to decode citations for message %s: %w", msg.ID, err)
		}
		if len(msg.Citations) == 0 {
			msg.Citations = nil
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, documentID string, role Role, content string, citations []Citation) (Message, error) {
	if !role.Valid() {
		return Message{}, &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, &ValidationError{Field: "content", Reason: "is required"}
	}
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return Message{}, err
	}
	if citations == nil {
		citations = []Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode citations: %w", err)
	}

	msg := Message{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Role:       role,
		Content:    content,
		Citations:  citations,
		CreatedAt:  s.now().UTC(),
	}
	if len(msg.Citations) == 0 {
		msg.Citations = nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (id, document_id, role, content, citations_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.DocumentID, string(msg.Role), msg.Content, string(citationsJSON), msg.CreatedAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}
