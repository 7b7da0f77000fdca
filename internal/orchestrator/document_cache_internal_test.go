package orchestrator

import (
	"booksummarizer/internal/domain"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type countingLoad struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (l *countingLoad) load(_ context.Context, bookPath string) (domain.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[bookPath]++

	if l.err != nil {
		return domain.Document{}, l.err
	}

	return domain.Document{Title: filepath.Base(bookPath), Path: bookPath}, nil
}

func TestDocumentCacheLoadsOncePerPath(t *testing.T) {
	cache := newDocumentCache()
	loader := &countingLoad{}

	first, cached, err := cache.load(context.Background(), "Foo.epub", loader.load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached {
		t.Fatalf("expected first load to miss the cache")
	}

	second, cached, err := cache.load(context.Background(), "Foo.epub", loader.load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cached {
		t.Fatalf("expected second load to hit the cache")
	}

	if first.Title != second.Title {
		t.Fatalf("unexpected document: %q != %q", first.Title, second.Title)
	}
	if loader.calls["Foo.epub"] != 1 {
		t.Fatalf("expected one load, got %d", loader.calls["Foo.epub"])
	}
}

func TestDocumentCacheKeysByAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cache := newDocumentCache()
	loader := &countingLoad{}

	if _, _, err := cache.load(context.Background(), "Foo.epub", loader.load); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	_, cached, err := cache.load(context.Background(), filepath.Join(wd, "sub", "..", "Foo.epub"), loader.load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cached {
		t.Fatalf("expected relative and absolute paths to share an entry")
	}

	if _, cached, _ = cache.load(context.Background(), "Bar.epub", loader.load); cached {
		t.Fatalf("expected another book to miss the cache")
	}
}

func TestDocumentCacheDoesNotKeepFailures(t *testing.T) {
	cache := newDocumentCache()
	loader := &countingLoad{err: errors.New("broken archive")}

	if _, _, err := cache.load(context.Background(), "Foo.epub", loader.load); err == nil {
		t.Fatalf("expected load error")
	}

	loader.err = nil
	doc, cached, err := cache.load(context.Background(), "Foo.epub", loader.load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached || doc.Title != "Foo.epub" {
		t.Fatalf("expected a fresh load after failure, got %q (cached=%v)", doc.Title, cached)
	}
	if loader.calls["Foo.epub"] != 2 {
		t.Fatalf("expected two loads, got %d", loader.calls["Foo.epub"])
	}
}

func TestDocumentCacheConcurrentLoads(t *testing.T) {
	cache := newDocumentCache()
	loader := &countingLoad{}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, _, _ = cache.load(context.Background(), "Foo.epub", loader.load)
		})
	}
	wg.Wait()

	if loader.calls["Foo.epub"] != 1 {
		t.Fatalf("expected one load under concurrency, got %d", loader.calls["Foo.epub"])
	}
}
