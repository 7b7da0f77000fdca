package artifact

import (
	"booksummarizer/internal/domain"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const fileSuffix = ".txt"

// Sink stores one summary file per (book, preset) pair in a directory.
type Sink struct {
	dir string
}

func New(dir string) *Sink {
	if dir == "" {
		dir = "."
	}

	return &Sink{dir: dir}
}

func (s *Sink) Dir() string {
	return s.dir
}

// Path returns "{book}_summary_{key}.txt" inside the sink directory.
func (s *Sink) Path(bookPath, key string) string {
	base := filepath.Base(bookPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(s.dir, base+"_summary_"+key+fileSuffix)
}

func (s *Sink) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("%w: %s is a directory", domain.ErrIO, path)
		}
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("%w: stat %s: %w", domain.ErrIO, path, err)
}

func (s *Sink) Read(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", domain.ErrIO, path, err)
	}

	return string(b), nil
}

// Write replaces path atomically: a temp file in the same directory is renamed over it.
func (s *Sink) Write(path, content string) error {
	if err := writeAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrIO, path, err)
	}

	return nil
}

func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_summary_*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
