package main

import (
	"booksummarizer/internal/domain"
	"booksummarizer/internal/orchestrator"
	"booksummarizer/internal/preset"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRejectsArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "no arguments", args: nil},
		{name: "one argument", args: []string{"Foo.epub"}},
		{name: "three arguments", args: []string{"Foo.epub", "pro_basic", "extra"}},
		{
			name:    "unknown key",
			args:    []string{"Foo.epub", "nonexistent"},
			wantErr: domain.ErrUnknownConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand(preset.Default(), io.Discard)
			cmd.SetArgs(tt.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			err := cmd.Execute()
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), preset.AllKey)
			}
		})
	}
}

func TestExecuteReportsFailureOnce(t *testing.T) {
	var out, logs bytes.Buffer

	code := execute(context.Background(), []string{"Foo.epub", "nonexistent"}, &out, &logs)
	assert.Equal(t, 1, code)
	assert.Empty(t, out.String())

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "Failed to run", record["msg"])
	assert.Contains(t, record["error"], "nonexistent")
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer

	printResult(&out, orchestrator.Result{
		Artifacts: []domain.Artifact{
			{Path: "out/Foo_summary_pro_basic.txt", ConfigKey: "pro_basic", Reused: true},
			{Path: "out/Foo_summary_pro_quick.txt", ConfigKey: "pro_quick"},
		},
		Verdict: &domain.Verdict{
			BestFile: "Foo_summary_pro_quick.txt",
			Reason:   "Concise.",
			Raw:      `{"best_file":"Foo_summary_pro_quick.txt","reason":"Concise."}`,
		},
	})

	lines := strings.Split(out.String(), "\n")
	assert.Equal(t, "pro_basic\texists\tout/Foo_summary_pro_basic.txt", lines[0])
	assert.Equal(t, "pro_quick\tcreated\tout/Foo_summary_pro_quick.txt", lines[1])
	assert.Contains(t, out.String(), "Best summary: Foo_summary_pro_quick.txt")
	assert.Contains(t, out.String(), "Reason: Concise.")
	assert.Contains(t, out.String(), "Judge answer:")
}

func TestPrintResultWithoutVerdict(t *testing.T) {
	var out bytes.Buffer

	printResult(&out, orchestrator.Result{
		Artifacts: []domain.Artifact{{Path: "Foo_summary_pro_basic.txt", ConfigKey: "pro_basic"}},
	})

	assert.Equal(t, "pro_basic\tcreated\tFoo_summary_pro_basic.txt\n", out.String())
}

func TestFirstModel(t *testing.T) {
	assert.Equal(t, "GigaChat-Plus", firstModel(preset.Default()))
}
