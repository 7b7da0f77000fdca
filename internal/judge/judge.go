package judge

import (
	"booksummarizer/internal/completion"
	"booksummarizer/internal/domain"
	"booksummarizer/internal/prompt"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const singleCandidateReason = "it is the only summary"

type answer struct {
	BestFile string `json:"best_file" jsonschema:"description=Name of the file with the best summary exactly as given"`
	Reason   string `json:"reason"    jsonschema:"description=Why this summary is better than the others"`
}

type candidate struct {
	Name    string
	Content string
}

// Judge asks a model to pick the best of several summaries of the same book.
type Judge struct {
	completer completion.Completer
	prompts   prompt.Provider
	model     string
	schema    *completion.Schema
	log       *slog.Logger
}

func New(
	completer completion.Completer,
	prompts prompt.Provider,
	model string,
	log *slog.Logger,
) (*Judge, error) {
	schema, err := completion.SchemaFor[answer](
		"summary_verdict",
		"The best summary file and the reason for the choice",
	)
	if err != nil {
		return nil, fmt.Errorf("build verdict schema: %w", err)
	}

	return &Judge{
		completer: completer,
		prompts:   prompts,
		model:     model,
		schema:    schema,
		log:       log,
	}, nil
}

// SelectBest reads every summary before asking anything; an unreadable file
// fails with domain.ErrMissingArtifact.
func (j *Judge) SelectBest(ctx context.Context, paths []string) (domain.Verdict, error) {
	if len(paths) == 0 {
		return domain.Verdict{}, fmt.Errorf("%w: no summaries to compare", domain.ErrMissingArtifact)
	}

	candidates := make([]candidate, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return domain.Verdict{}, fmt.Errorf("%w: read %s: %w", domain.ErrMissingArtifact, path, err)
		}

		candidates = append(candidates, candidate{
			Name:    filepath.Base(path),
			Content: string(b),
		})
	}

	if len(candidates) == 1 {
		return domain.Verdict{
			BestFile: candidates[0].Name,
			Reason:   singleCandidateReason,
		}, nil
	}

	text, err := j.prompts.Render(prompt.Judge, map[string]any{"Files": candidates})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("render judge prompt: %w", err)
	}

	j.log.InfoContext(ctx, "Judge is asked",
		"model", j.model,
		"files", len(candidates),
	)

	raw, err := j.completer.Complete(ctx, completion.Request{
		Model:  j.model,
		Prompt: text,
		Schema: j.schema,
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("ask judge: %w", err)
	}

	verdict := parseVerdict(raw, candidates)
	if verdict.BestFile == "" {
		j.log.WarnContext(ctx, "Judge answer names no known file",
			"model", j.model,
		)
	}

	return verdict, nil
}

func parseVerdict(raw string, candidates []candidate) domain.Verdict {
	verdict := domain.Verdict{Raw: raw}

	var a answer
	if err := decodeAnswer(raw, &a); err == nil {
		verdict.BestFile = matchName(a.BestFile, candidates)
		verdict.Reason = strings.TrimSpace(a.Reason)
		if verdict.BestFile == "" {
			verdict.BestFile = firstMentioned(a.Reason, candidates)
		}
		return verdict
	}

	verdict.BestFile = firstMentioned(raw, candidates)
	verdict.Reason = strings.TrimSpace(raw)

	return verdict
}

func decodeAnswer(raw string, a *answer) error {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), a); err != nil {
		return err
	}
	if a.BestFile == "" && a.Reason == "" {
		return errors.New("empty verdict")
	}

	return nil
}

// matchName maps a model-reported name back to a candidate, tolerating
// directories and letter case.
func matchName(name string, candidates []candidate) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	base := filepath.Base(name)
	for _, c := range candidates {
		if strings.EqualFold(c.Name, base) {
			return c.Name
		}
	}

	return firstMentioned(name, candidates)
}

func firstMentioned(text string, candidates []candidate) string {
	lower := strings.ToLower(text)

	best, bestAt := "", -1
	for _, c := range candidates {
		at := strings.Index(lower, strings.ToLower(c.Name))
		if at < 0 {
			continue
		}
		// Longer names win ties so a name is not shadowed by its own prefix.
		if bestAt < 0 || at < bestAt || (at == bestAt && len(c.Name) > len(best)) {
			best, bestAt = c.Name, at
		}
	}

	return best
}
