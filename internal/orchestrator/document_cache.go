package orchestrator

import (
	"booksummarizer/internal/domain"
	"context"
	"path/filepath"
	"sync"
)

// documentCache loads each book once per orchestrator. Documents are
// read-only after load, so the cached value is shared between presets.
type documentCache struct {
	mu   sync.Mutex
	docs map[string]domain.Document
}

func newDocumentCache() *documentCache {
	return &documentCache{docs: make(map[string]domain.Document)}
}

// load returns the cached document for bookPath or calls fn and caches its
// result. Failed loads are not cached.
func (c *documentCache) load(
	ctx context.Context,
	bookPath string,
	fn func(ctx context.Context, bookPath string) (domain.Document, error),
) (domain.Document, bool, error) {
	key := documentKey(bookPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	if doc, ok := c.docs[key]; ok {
		return doc, true, nil
	}

	doc, err := fn(ctx, bookPath)
	if err != nil {
		return domain.Document{}, false, err
	}
	c.docs[key] = doc

	return doc, false, nil
}

func documentKey(bookPath string) string {
	abs, err := filepath.Abs(bookPath)
	if err != nil {
		return filepath.Clean(bookPath)
	}

	return abs
}
