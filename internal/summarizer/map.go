package summarizer

import (
	"booksummarizer/internal/domain"
	"booksummarizer/internal/prompt"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Map summarizes every chunk with the map prompt. Results are in chunk order
// whatever the concurrency; the first failure cancels the remaining calls.
func (p *Pipeline) Map(
	ctx context.Context,
	chunks []domain.Chunk,
	preset domain.Preset,
) ([]string, error) {
	partials := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.mapConcurrency)

	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			summary, err := p.complete(gctx, prompt.Map, preset.MapSize, c.Text, preset)
			if err != nil {
				return fmt.Errorf("summarize chunk %d: %w", c.Index, err)
			}

			partials[i] = summary
			p.log.DebugContext(gctx, "Chunk is summarized",
				"preset", preset.Key,
				"chunkIndex", c.Index,
				"chunkCount", len(chunks),
				"summaryLength", len(summary))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return partials, nil
}
