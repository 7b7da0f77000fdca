// Package chunker splits book text into overlapping windows that end on
// natural boundaries whenever one is close enough to the size limit.
package chunker

import (
	"booksummarizer/internal/domain"
	"fmt"
	"strings"
	"unicode"
)

// startSnapDivisor bounds how far a chunk start may move forward to reach a word start.
const startSnapDivisor = 4

type boundary func(text []rune, cut int) bool

// Ordered from the most to the least preferred break.
var boundaries = []boundary{
	isParagraphBreak,
	isLineBreak,
	isSentenceEnd,
	isWhitespace,
}

func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf(
			"%w: chunk overlap %d must be in [0, %d)",
			domain.ErrInvalidConfiguration,
			overlap,
			size,
		)
	}

	return nil
}

// Split cuts text into chunks of at most size runes, each starting about
// overlap runes before the end of the previous one.
func Split(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []domain.Chunk
	pos := 0

	for {
		end := min(pos+size, n)
		if end < n {
			end = snapCut(runes, pos+overlap, end)
		}

		chunks = append(chunks, domain.Chunk{
			Index: len(chunks),
			Text:  string(runes[pos:end]),
			Start: pos,
			End:   end,
		})

		if end == n {
			return chunks, nil
		}

		pos = snapStart(runes, end-overlap, end, overlap/startSnapDivisor)
	}
}

// SplitDocument splits the whole document with the preset's sizing.
func SplitDocument(doc domain.Document, p domain.Preset) ([]domain.Chunk, error) {
	return Split(doc.Text(), p.ChunkSize, p.ChunkOverlap)
}

// snapCut moves the cut back to the best boundary in (lo, hi].
func snapCut(text []rune, lo, hi int) int {
	for _, isBoundary := range boundaries {
		for cut := hi; cut > lo; cut-- {
			if isBoundary(text, cut) {
				return cut
			}
		}
	}

	return hi
}

// snapStart moves start forward to the next word start, by at most maxShift
// runes and never to limit or beyond.
func snapStart(text []rune, start, limit, maxShift int) int {
	if start == 0 || unicode.IsSpace(text[start-1]) {
		return start
	}

	for i := start; i < min(start+maxShift, limit-1); i++ {
		if unicode.IsSpace(text[i]) {
			return i + 1
		}
	}

	return start
}

func isParagraphBreak(text []rune, cut int) bool {
	return cut >= 2 && text[cut-1] == '\n' && text[cut-2] == '\n'
}

func isLineBreak(text []rune, cut int) bool {
	return cut >= 1 && text[cut-1] == '\n'
}

func isSentenceEnd(text []rune, cut int) bool {
	if cut < 2 || !unicode.IsSpace(text[cut-1]) {
		return false
	}

	switch text[cut-2] {
	case '.', '!', '?', '…':
		return true
	default:
		return false
	}
}

func isWhitespace(text []rune, cut int) bool {
	return cut >= 1 && unicode.IsSpace(text[cut-1])
}
