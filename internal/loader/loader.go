package loader

import (
	"booksummarizer/internal/domain"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads a book into an ordered list of sections.
type Loader interface {
	Load(ctx context.Context, path string) (domain.Document, error)
}

// ByExtension picks a loader from the file extension.
type ByExtension struct {
	loaders map[string]Loader
}

func New() *ByExtension {
	text := Text{}

	return &ByExtension{
		loaders: map[string]Loader{
			".epub": EPUB{},
			".txt":  text,
			".text": text,
			".md":   text,
		},
	}
}

func (l *ByExtension) Load(ctx context.Context, path string) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	loader, ok := l.loaders[ext]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: unsupported book format %q", domain.ErrIO, ext)
	}

	return loader.Load(ctx, path)
}

// Text loads a plain text file as a single section.
type Text struct{}

func (Text) Load(_ context.Context, path string) (domain.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %w", domain.ErrIO, path, err)
	}

	return domain.Document{
		Title: BookName(path),
		Path:  path,
		Sections: []domain.Section{
			{Text: cleanText(strings.ReplaceAll(string(b), "\r\n", "\n")), Source: filepath.Base(path)},
		},
	}, nil
}

// BookName is the file name without directory and extension.
func BookName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
