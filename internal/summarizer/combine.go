package summarizer

import (
	"booksummarizer/internal/domain"
	"booksummarizer/internal/prompt"
	"context"
	"fmt"
	"strings"
)

const (
	partialSeparator = "\n\n"
	maxCollapseDepth = 10
)

// Combine merges partial summaries into the final text. While the combine
// prompt with the joined partials would exceed preset.MaxTokens they are
// combined group by group, and the group results take their place.
func (p *Pipeline) Combine(
	ctx context.Context,
	partials []string,
	preset domain.Preset,
) (string, error) {
	texts := nonEmpty(partials)
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: no partial summaries", domain.ErrEmptyDocument)
	}

	budget, err := p.textBudget(preset)
	if err != nil {
		return "", err
	}

	for depth := 0; p.counter.Count(strings.Join(texts, partialSeparator)) > budget; depth++ {
		if depth >= maxCollapseDepth {
			return "", fmt.Errorf(
				"%w: %d summaries exceed %d tokens after %d rounds",
				domain.ErrReduceDiverged,
				len(texts),
				budget,
				depth,
			)
		}

		groups := groupByBudget(texts, budget, p.counter.Count)
		collapsed := make([]string, 0, len(groups))

		for i, group := range groups {
			summary, combineErr := p.combineOnce(ctx, group, preset)
			if combineErr != nil {
				return "", fmt.Errorf("collapse group %d/%d at depth %d: %w", i+1, len(groups), depth, combineErr)
			}
			collapsed = append(collapsed, summary)
		}

		p.log.InfoContext(ctx, "Summaries are collapsed",
			"preset", preset.Key,
			"depth", depth,
			"before", len(texts),
			"after", len(collapsed),
			"tokenBudget", budget)

		texts = collapsed
	}

	final, err := p.combineOnce(ctx, texts, preset)
	if err != nil {
		return "", err
	}

	return Normalize(final), nil
}

// textBudget is preset.MaxTokens less the tokens of the combine prompt itself.
func (p *Pipeline) textBudget(preset domain.Preset) (int, error) {
	rendered, err := p.prompts.Render(prompt.Combine, map[string]any{
		"Size": preset.ReduceSize,
		"Text": "",
	})
	if err != nil {
		return 0, fmt.Errorf("render prompt: %w", err)
	}

	overhead := p.counter.Count(rendered)
	if overhead >= preset.MaxTokens {
		return 0, fmt.Errorf(
			"%w: combine prompt takes %d of %d tokens",
			domain.ErrInvalidConfiguration,
			overhead,
			preset.MaxTokens,
		)
	}

	return preset.MaxTokens - overhead, nil
}

func (p *Pipeline) combineOnce(
	ctx context.Context,
	texts []string,
	preset domain.Preset,
) (string, error) {
	return p.complete(ctx, prompt.Combine, preset.ReduceSize, strings.Join(texts, partialSeparator), preset)
}

// groupByBudget packs consecutive texts into groups whose token sum fits the
// budget. A text larger than the budget forms a group of its own.
func groupByBudget(texts []string, budget int, count func(string) int) [][]string {
	var (
		groups  [][]string
		current []string
		used    int
	)

	for _, text := range texts {
		n := count(text)
		if len(current) > 0 && used+n > budget {
			groups = append(groups, current)
			current = nil
			used = 0
		}

		current = append(current, text)
		used += n
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}

func nonEmpty(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}

	return out
}

// Normalize puts every sentence on its own line. It is idempotent.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, ". ", ".\n"))
}
