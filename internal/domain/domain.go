package domain

import "strings"

// sectionSeparator joins sections so that chapter ends become paragraph breaks.
const sectionSeparator = "\n\n"

type Section struct {
	Text   string
	Source string
	Index  int
}

type Document struct {
	Title    string
	Path     string
	Sections []Section
}

// Text returns the whole book as one string, sections separated by a blank line.
func (d Document) Text() string {
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, sectionSeparator)
}

// Chunk is a window of Document.Text(). Start and End are rune offsets.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

type Preset struct {
	Key          string
	ModelName    string
	MaxTokens    int
	ChunkSize    int
	ChunkOverlap int
	MapSize      string
	ReduceSize   string
}

type Artifact struct {
	Path      string
	ConfigKey string
	Content   string
	Reused    bool
}

type Verdict struct {
	BestFile string
	Reason   string
	Raw      string
}
