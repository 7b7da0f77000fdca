package preset

import (
	"booksummarizer/internal/domain"
	"fmt"
	"slices"
	"strings"
)

// AllKey runs every registered preset and compares the results.
const AllKey = "all"

const (
	plusModel = "GigaChat-Plus"
	proModel  = "GigaChat-Pro"

	plusMaxTokens    = 10000
	plusChunkSize    = 100000
	plusChunkOverlap = 5000

	proMaxTokens    = 2000
	proChunkSize    = 20000
	proChunkOverlap = 1000
)

// Registry is a read-only catalog of presets keyed by name.
type Registry struct {
	keys    []string
	presets map[string]domain.Preset
}

// Default returns the built-in preset table.
func Default() *Registry {
	r, err := New(
		domain.Preset{
			Key:          "plus_basic",
			ModelName:    plusModel,
			MaxTokens:    plusMaxTokens,
			ChunkSize:    plusChunkSize,
			ChunkOverlap: plusChunkOverlap,
			MapSize:      "пять предложений",
			ReduceSize:   "одна страница",
		},
		domain.Preset{
			Key:          "plus_detailed",
			ModelName:    plusModel,
			MaxTokens:    plusMaxTokens,
			ChunkSize:    plusChunkSize,
			ChunkOverlap: plusChunkOverlap,
			MapSize:      "три страницы",
			ReduceSize:   "три страницы",
		},
		domain.Preset{
			Key:          "plus_quick",
			ModelName:    plusModel,
			MaxTokens:    plusMaxTokens,
			ChunkSize:    plusChunkSize,
			ChunkOverlap: plusChunkOverlap,
			MapSize:      "три предложения",
			ReduceSize:   "пять предложений",
		},
		domain.Preset{
			Key:          "pro_basic",
			ModelName:    proModel,
			MaxTokens:    proMaxTokens,
			ChunkSize:    proChunkSize,
			ChunkOverlap: proChunkOverlap,
			MapSize:      "три предложения",
			ReduceSize:   "одна страница",
		},
		domain.Preset{
			Key:          "pro_detailed",
			ModelName:    proModel,
			MaxTokens:    proMaxTokens,
			ChunkSize:    proChunkSize,
			ChunkOverlap: proChunkOverlap,
			MapSize:      "три предложения",
			ReduceSize:   "три абзаца",
		},
		domain.Preset{
			Key:          "pro_quick",
			ModelName:    proModel,
			MaxTokens:    proMaxTokens,
			ChunkSize:    proChunkSize,
			ChunkOverlap: proChunkOverlap,
			MapSize:      "одно предложение",
			ReduceSize:   "три предложения",
		},
	)
	if err != nil {
		panic(err)
	}

	return r
}

// New validates presets and builds a registry preserving their order.
func New(presets ...domain.Preset) (*Registry, error) {
	r := &Registry{
		keys:    make([]string, 0, len(presets)),
		presets: make(map[string]domain.Preset, len(presets)),
	}

	for _, p := range presets {
		if err := Validate(p); err != nil {
			return nil, err
		}
		if _, ok := r.presets[p.Key]; ok {
			return nil, fmt.Errorf("%w: duplicate preset key %q", domain.ErrInvalidConfiguration, p.Key)
		}

		r.keys = append(r.keys, p.Key)
		r.presets[p.Key] = p
	}

	return r, nil
}

func Validate(p domain.Preset) error {
	key := strings.TrimSpace(p.Key)
	switch {
	case key == "" || key != p.Key:
		return fmt.Errorf("%w: preset key %q", domain.ErrInvalidConfiguration, p.Key)
	case key == AllKey:
		return fmt.Errorf("%w: preset key %q is reserved", domain.ErrInvalidConfiguration, p.Key)
	case strings.TrimSpace(p.ModelName) == "":
		return fmt.Errorf("%w: preset %s has no model", domain.ErrInvalidConfiguration, p.Key)
	case p.MaxTokens <= 0:
		return fmt.Errorf("%w: preset %s max tokens %d", domain.ErrInvalidConfiguration, p.Key, p.MaxTokens)
	case p.ChunkSize <= 0:
		return fmt.Errorf("%w: preset %s chunk size %d", domain.ErrInvalidConfiguration, p.Key, p.ChunkSize)
	case p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize:
		return fmt.Errorf(
			"%w: preset %s chunk overlap %d must be in [0, %d)",
			domain.ErrInvalidConfiguration,
			p.Key,
			p.ChunkOverlap,
			p.ChunkSize,
		)
	}

	return nil
}

func (r *Registry) Lookup(key string) (domain.Preset, error) {
	p, ok := r.presets[key]
	if !ok {
		return domain.Preset{}, fmt.Errorf("%w: %q", domain.ErrUnknownConfiguration, key)
	}

	return p, nil
}

// Keys returns preset keys in table order.
func (r *Registry) Keys() []string {
	return slices.Clone(r.keys)
}

// Choices returns every key accepted on the command line.
func (r *Registry) Choices() []string {
	return append(r.Keys(), AllKey)
}

// Check accepts a registered key or AllKey.
func (r *Registry) Check(key string) error {
	if IsAll(key) {
		return nil
	}

	_, err := r.Lookup(key)
	return err
}

func IsAll(key string) bool {
	return key == AllKey
}
