// Package summarizer implements map-reduce summarization: every chunk is
// summarized on its own (map), then the partial summaries are combined into
// one text (reduce), collapsing them in groups while they exceed the token budget.
package summarizer

import (
	"booksummarizer/internal/chunker"
	"booksummarizer/internal/completion"
	"booksummarizer/internal/domain"
	"booksummarizer/internal/prompt"
	"booksummarizer/internal/tokens"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Pipeline struct {
	completer      completion.Completer
	prompts        prompt.Provider
	counter        tokens.Counter
	mapConcurrency int
	log            *slog.Logger
}

// New builds a pipeline. mapConcurrency below 1 means sequential map calls.
func New(
	completer completion.Completer,
	prompts prompt.Provider,
	counter tokens.Counter,
	mapConcurrency int,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		completer:      completer,
		prompts:        prompts,
		counter:        counter,
		mapConcurrency: max(mapConcurrency, 1),
		log:            log,
	}
}

// Summarize runs chunking, map and combine over doc with the preset's settings.
func (p *Pipeline) Summarize(
	ctx context.Context,
	doc domain.Document,
	preset domain.Preset,
) (string, error) {
	chunks, err := chunker.SplitDocument(doc, preset)
	if err != nil {
		return "", fmt.Errorf("split document: %w", err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrEmptyDocument, doc.Path)
	}

	p.log.InfoContext(ctx, "Chunks are ready",
		"preset", preset.Key,
		"chunkCount", len(chunks),
		"chunkSize", preset.ChunkSize,
		"chunkOverlap", preset.ChunkOverlap)

	partials, err := p.Map(ctx, chunks, preset)
	if err != nil {
		return "", fmt.Errorf("map chunks: %w", err)
	}

	final, err := p.Combine(ctx, partials, preset)
	if err != nil {
		return "", fmt.Errorf("combine summaries: %w", err)
	}

	return final, nil
}

func (p *Pipeline) complete(
	ctx context.Context,
	templateName string,
	size string,
	text string,
	preset domain.Preset,
) (string, error) {
	rendered, err := p.prompts.Render(templateName, map[string]any{
		"Size": size,
		"Text": text,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	out, err := p.completer.Complete(ctx, completion.Request{
		Model:     preset.ModelName,
		Prompt:    rendered,
		MaxTokens: preset.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}
