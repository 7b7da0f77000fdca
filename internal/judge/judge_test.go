package judge_test

import (
	"booksummarizer/internal/completion"
	"booksummarizer/internal/domain"
	"booksummarizer/internal/judge"
	"booksummarizer/internal/prompt"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	answer   string
	err      error
	requests []completion.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

type requestIDKey struct{}

// contextHandler records the request id found in the context of each record.
type contextHandler struct {
	mu  sync.Mutex
	ids []any
}

func (h *contextHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *contextHandler) Handle(ctx context.Context, _ slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ids = append(h.ids, ctx.Value(requestIDKey{}))
	return nil
}

func (h *contextHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *contextHandler) WithGroup(string) slog.Handler      { return h }

func newJudge(t *testing.T, fc *fakeCompleter) *judge.Judge {
	t.Helper()

	prompts, err := prompt.New("")
	require.NoError(t, err)

	j, err := judge.New(fc, prompts, "gpt-4", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return j
}

func writeSummaries(t *testing.T, contents map[string]string) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, len(contents))
	for _, name := range []string{
		"Foo_summary_pro_basic.txt",
		"Foo_summary_pro_quick.txt",
		"Foo_summary_plus_basic.txt",
	} {
		content, ok := contents[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		paths = append(paths, path)
	}

	return paths
}

func threeSummaries(t *testing.T) []string {
	t.Helper()

	return writeSummaries(t, map[string]string{
		"Foo_summary_pro_basic.txt":  "Basic summary.",
		"Foo_summary_pro_quick.txt":  "Quick summary.",
		"Foo_summary_plus_basic.txt": "Plus summary.",
	})
}

func TestSelectBestStructuredAnswer(t *testing.T) {
	fc := &fakeCompleter{
		answer: `{"best_file":"Foo_summary_pro_quick.txt","reason":"Short and complete."}`,
	}
	j := newJudge(t, fc)

	verdict, err := j.SelectBest(context.Background(), threeSummaries(t))
	require.NoError(t, err)

	assert.Equal(t, "Foo_summary_pro_quick.txt", verdict.BestFile)
	assert.Equal(t, "Short and complete.", verdict.Reason)
	assert.Equal(t, fc.answer, verdict.Raw)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	assert.Equal(t, "gpt-4", req.Model)
	require.NotNil(t, req.Schema)
	assert.Equal(t, "summary_verdict", req.Schema.Name)
	assert.Equal(t, []string{"best_file", "reason"}, req.Schema.Definition["required"])

	for _, want := range []string{
		"Файл: Foo_summary_pro_basic.txt:",
		"Basic summary.",
		"Файл: Foo_summary_pro_quick.txt:",
		"Quick summary.",
		"Файл: Foo_summary_plus_basic.txt:",
		"Plus summary.",
	} {
		assert.Contains(t, req.Prompt, want)
	}
}

func TestSelectBestAcceptsPathAndCase(t *testing.T) {
	fc := &fakeCompleter{
		answer: "```json\n{\"best_file\":\"/tmp/x/FOO_SUMMARY_PLUS_BASIC.TXT\",\"reason\":\"Detailed.\"}\n```",
	}
	j := newJudge(t, fc)

	verdict, err := j.SelectBest(context.Background(), threeSummaries(t))
	require.NoError(t, err)

	assert.Equal(t, "Foo_summary_plus_basic.txt", verdict.BestFile)
	assert.Equal(t, "Detailed.", verdict.Reason)
}

func TestSelectBestPlainTextAnswer(t *testing.T) {
	fc := &fakeCompleter{
		answer: "The best one is Foo_summary_pro_basic.txt because it keeps every plot point.",
	}
	j := newJudge(t, fc)

	verdict, err := j.SelectBest(context.Background(), threeSummaries(t))
	require.NoError(t, err)

	assert.Equal(t, "Foo_summary_pro_basic.txt", verdict.BestFile)
	assert.Equal(t, fc.answer, verdict.Reason)
	assert.Equal(t, fc.answer, verdict.Raw)
}

func TestSelectBestUnknownName(t *testing.T) {
	fc := &fakeCompleter{answer: "I cannot decide."}
	j := newJudge(t, fc)

	verdict, err := j.SelectBest(context.Background(), threeSummaries(t))
	require.NoError(t, err)

	assert.Empty(t, verdict.BestFile)
	assert.Equal(t, "I cannot decide.", verdict.Raw)
}

func TestSelectBestLogsWithCallerContext(t *testing.T) {
	fc := &fakeCompleter{answer: "I cannot decide."}
	prompts, err := prompt.New("")
	require.NoError(t, err)

	h := &contextHandler{}
	j, err := judge.New(fc, prompts, "gpt-4", slog.New(h))
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), requestIDKey{}, "run-1")
	_, err = j.SelectBest(ctx, threeSummaries(t))
	require.NoError(t, err)

	require.Len(t, h.ids, 2)
	for _, id := range h.ids {
		assert.Equal(t, "run-1", id)
	}
}

func TestSelectBestMissingFile(t *testing.T) {
	fc := &fakeCompleter{answer: "unused"}
	j := newJudge(t, fc)

	paths := threeSummaries(t)
	paths = append(paths, filepath.Join(t.TempDir(), "Foo_summary_plus_quick.txt"))

	_, err := j.SelectBest(context.Background(), paths)
	require.ErrorIs(t, err, domain.ErrMissingArtifact)
	assert.Empty(t, fc.requests)
}

func TestSelectBestNoFiles(t *testing.T) {
	fc := &fakeCompleter{}
	j := newJudge(t, fc)

	_, err := j.SelectBest(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrMissingArtifact)
	assert.Empty(t, fc.requests)
}

func TestSelectBestSingleFile(t *testing.T) {
	fc := &fakeCompleter{}
	j := newJudge(t, fc)

	paths := writeSummaries(t, map[string]string{"Foo_summary_pro_basic.txt": "Only."})

	verdict, err := j.SelectBest(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, "Foo_summary_pro_basic.txt", verdict.BestFile)
	assert.NotEmpty(t, verdict.Reason)
	assert.Empty(t, fc.requests)
}

func TestSelectBestCompletionFailure(t *testing.T) {
	errDown := errors.New("service down")
	fc := &fakeCompleter{err: errDown}
	j := newJudge(t, fc)

	_, err := j.SelectBest(context.Background(), threeSummaries(t))
	require.ErrorIs(t, err, errDown)
}
