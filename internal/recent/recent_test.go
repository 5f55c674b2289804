package recent

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/csheth/pdfchat/internal/docs"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	entries, err := Load(filepath.Join(t.TempDir(), "recent.json"))
	if err != nil || len(entries) != 0 {
		t.Fatalf("Load() = %v, %v; want empty", entries, err)
	}
}

func TestTouchOrdersAndDedupes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "recent.json")
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "a"} {
		if _, err := Touch(path, docs.Document{ID: id, OriginalName: id + ".pdf"}, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Touch(%s): %v", id, err)
		}
	}
	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := []string{}
	for _, e := range entries {
		got = append(got, e.DocumentID)
	}
	if fmt.Sprint(got) != "[a c b]" {
		t.Fatalf("unexpected order: %v", got)
	}
	if !entries[0].OpenedAt.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("timestamp not refreshed: %v", entries[0].OpenedAt)
	}
}

func TestTouchCapsEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recent.json")
	now := time.Now()
	for i := 0; i < MaxEntries+4; i++ {
		if _, err := Touch(path, docs.Document{ID: fmt.Sprintf("d%d", i)}, now); err != nil {
			t.Fatalf("Touch: %v", err)
		}
	}
	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != MaxEntries {
		t.Fatalf("expected %d entries, got %d", MaxEntries, len(entries))
	}
	if entries[0].DocumentID != fmt.Sprintf("d%d", MaxEntries+3) {
		t.Fatalf("most recent should be first, got %s", entries[0].DocumentID)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recent.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
