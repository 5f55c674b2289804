package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csheth/pdfchat/internal/docs"
)

const (
	cacheSubdir   = "pdfchat/pdfs"
	partialSuffix = ".part"
	metaSuffix    = ".meta"
)

// Cache keeps a local copy of each document's bytes so the renderer and the fallback
// actions can work from a file path.
type Cache struct {
	dir   string
	store docs.DocumentStore
}

type cacheMeta struct {
	DocumentID   string    `json:"documentId"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	CachedAt     time.Time `json:"cachedAt"`
}

// NewCache stores files under dir, or under the user cache directory when dir is empty.
func NewCache(dir string, store docs.DocumentStore) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "pdfchat-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, store: store}, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

// Fetch returns the path of the cached PDF for doc, downloading it once. A cached copy
// is reused when its recorded size matches the document.
func (c *Cache) Fetch(ctx context.Context, doc docs.Document) (string, error) {
	key := cacheKey(doc.ID)
	if key == "" {
		return "", fmt.Errorf("document has no id")
	}
	pdfPath, metaPath, partialPath := c.pathsFor(key)

	info, statErr := os.Stat(pdfPath)
	if statErr == nil && info.Size() > 0 {
		meta, err := readMeta(metaPath)
		if err == nil && meta.DocumentID == doc.ID && (doc.Size == 0 || meta.Size == doc.Size) {
			return pdfPath, nil
		}
	}

	path, err := c.download(ctx, doc, pdfPath, metaPath, partialPath)
	if err == nil {
		return path, nil
	}
	if statErr == nil && info.Size() > 0 {
		return pdfPath, nil
	}
	return "", err
}

func (c *Cache) download(ctx context.Context, doc docs.Document, pdfPath, metaPath, partialPath string) (string, error) {
	body, err := c.store.GetDocumentBytes(ctx, doc.ID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	file, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	size, err := io.Copy(file, body)
	if err != nil {
		file.Close()
		os.Remove(partialPath)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(partialPath, pdfPath); err != nil {
		return "", err
	}

	meta := cacheMeta{
		DocumentID:   doc.ID,
		OriginalName: doc.OriginalName,
		Size:         size,
		CachedAt:     time.Now().UTC(),
	}
	if err := writeMeta(metaPath, meta); err != nil {
		return "", err
	}
	return pdfPath, nil
}

func (c *Cache) pathsFor(key string) (string, string, string) {
	return filepath.Join(c.dir, key+".pdf"), filepath.Join(c.dir, key+metaSuffix), filepath.Join(c.dir, key+partialSuffix)
}

func cacheKey(id string) string {
	id = strings.TrimSpace(id)
	id = strings.ReplaceAll(id, "/", "-")
	id = strings.ReplaceAll(id, "\\", "-")
	id = strings.ReplaceAll(id, ":", "-")
	id = strings.ReplaceAll(id, "..", "-")
	return id
}

func readMeta(path string) (cacheMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cacheMeta{}, err
	}
	var meta cacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func writeMeta(path string, meta cacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
