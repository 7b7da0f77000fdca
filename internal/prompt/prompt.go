package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const (
	Map     = "map"
	Combine = "combine"
	Judge   = "judge"

	templateExt = ".tmpl"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Provider renders a named prompt template.
type Provider interface {
	Render(name string, data map[string]any) (string, error)
}

// Store keeps parsed templates. Embedded defaults can be overridden per name
// by files in an override directory.
type Store struct {
	templates map[string]*template.Template
}

// New loads the embedded templates and, when dir is not empty, replaces any
// of them with dir/<name>.tmpl.
func New(dir string) (*Store, error) {
	s := &Store{templates: make(map[string]*template.Template)}

	for _, name := range []string{Map, Combine, Judge} {
		text, err := fs.ReadFile(templatesFS, "templates/"+name+templateExt)
		if err != nil {
			return nil, fmt.Errorf("read embedded template %s: %w", name, err)
		}

		if dir = strings.TrimSpace(dir); dir != "" {
			override, readErr := os.ReadFile(filepath.Join(dir, name+templateExt))
			switch {
			case readErr == nil:
				text = override
			case !errors.Is(readErr, fs.ErrNotExist):
				return nil, fmt.Errorf("read template override %s: %w", name, readErr)
			}
		}

		if err = s.Add(name, string(text)); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Add parses and registers a template, replacing one with the same name.
func (s *Store) Add(name, text string) error {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}

	s.templates[name] = tmpl
	return nil
}

func (s *Store) Render(name string, data map[string]any) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
