package domain_test

import (
	"booksummarizer/internal/domain"
	"testing"
)

func TestDocumentTextJoinsSectionsWithBlankLine(t *testing.T) {
	doc := domain.Document{
		Sections: []domain.Section{
			{Text: "  Chapter one.  ", Index: 0},
			{Text: "\n\n", Index: 1},
			{Text: "Chapter two.", Index: 2},
		},
	}

	got := doc.Text()
	want := "Chapter one.\n\nChapter two."
	if got != want {
		t.Fatalf("unexpected text: got %q want %q", got, want)
	}
}

func TestDocumentTextEmpty(t *testing.T) {
	if got := (domain.Document{}).Text(); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
