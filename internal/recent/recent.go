package recent

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csheth/pdfchat/internal/docs"
)

// MaxEntries caps the recent list.
const MaxEntries = 9

// Entry remembers a document that reached the chat screen.
type Entry struct {
	DocumentID   string    `json:"documentId"`
	OriginalName string    `json:"originalName"`
	PageCount    int       `json:"pageCount,omitempty"`
	OpenedAt     time.Time `json:"openedAt"`
}

// DefaultPath returns the recent file under the user config directory.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pdfchat", "recent.json")
}

// Load returns the recent list, most recent first. A missing file is an empty list.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	entries, err := loadEntries(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// Touch moves doc to the front of the recent list, dropping older duplicates and
// anything beyond MaxEntries.
func Touch(path string, doc docs.Document, now time.Time) ([]Entry, error) {
	if path == "" || strings.TrimSpace(doc.ID) == "" {
		return nil, nil
	}
	existing, err := Load(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, MaxEntries)
	entries = append(entries, Entry{
		DocumentID:   doc.ID,
		OriginalName: doc.OriginalName,
		PageCount:    doc.PageCount,
		OpenedAt:     now.UTC(),
	})
	for _, entry := range existing {
		if len(entries) == MaxEntries {
			break
		}
		if entry.DocumentID == doc.ID {
			continue
		}
		entries = append(entries, entry)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := writeEntries(path, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func writeEntries(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
