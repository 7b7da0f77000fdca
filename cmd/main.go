package main

import (
	"booksummarizer/internal/artifact"
	"booksummarizer/internal/completion"
	"booksummarizer/internal/config"
	"booksummarizer/internal/judge"
	"booksummarizer/internal/loader"
	"booksummarizer/internal/orchestrator"
	"booksummarizer/internal/preset"
	"booksummarizer/internal/prompt"
	"booksummarizer/internal/ratelimiter"
	"booksummarizer/internal/summarizer"
	"booksummarizer/internal/tokens"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := execute(ctx, os.Args[1:], os.Stdout, os.Stdout)
	stop()
	os.Exit(code)
}

// execute runs the command and reports a failure once, as a JSON log record.
func execute(ctx context.Context, args []string, out, logOut io.Writer) int {
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, nil)))

	cmd := newRootCommand(preset.Default(), logOut)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(logOut)

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to run",
			"error", err,
			"args", args)

		return 1
	}

	return 0
}

func newRootCommand(registry *preset.Registry, logOut io.Writer) *cobra.Command {
	var (
		configPath string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "booksummarizer <book_path> <config_key>",
		Short: "Summarize a book with map-reduce over an LLM",
		Long: "Summarize an EPUB or plain text book with one of the presets: " +
			strings.Join(registry.Keys(), ", ") + ".\n" +
			"The key \"" + preset.AllKey + "\" runs every preset and asks a judge model to pick the best summary.",
		Args:          cobra.MatchAll(cobra.ExactArgs(2), presetArg(registry)),
		SilenceUsage:  true,
		SilenceErrors: true,
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return registry.Choices(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveDefault
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), logOut, registry, args[0], args[1], configPath, outDir)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultFile, "JSON config file")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for summaries (overrides OUTPUT_DIR)")

	return cmd
}

func presetArg(registry *preset.Registry) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if err := registry.Check(args[1]); err != nil {
			return fmt.Errorf("config_key must be one of %s: %w", strings.Join(registry.Choices(), ", "), err)
		}
		return nil
	}
}

func run(
	ctx context.Context,
	out io.Writer,
	logOut io.Writer,
	registry *preset.Registry,
	bookPath string,
	key string,
	configPath string,
	outDir string,
) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	level, _ := cfg.Level()
	log := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if outDir == "" {
		outDir = cfg.OutputDir
	}

	orch, err := newOrchestrator(ctx, cfg, registry, outDir, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	start := time.Now()
	result, err := orch.Run(ctx, bookPath, key)
	if err != nil {
		return fmt.Errorf("run %s after %s: %w", key, time.Since(start).Round(time.Second), err)
	}

	log.InfoContext(ctx, "Book is summarized",
		"book", bookPath,
		"preset", key,
		"artifacts", len(result.Artifacts),
		"durationSeconds", time.Since(start).Seconds())

	printResult(out, result)

	return nil
}

func newOrchestrator(
	ctx context.Context,
	cfg config.Config,
	registry *preset.Registry,
	outDir string,
	log *slog.Logger,
) (*orchestrator.Orchestrator, error) {
	prompts, err := prompt.New(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	var counter tokens.Counter
	tke, err := tokens.NewTiktoken(firstModel(registry))
	if err != nil {
		log.WarnContext(ctx, "Tokenizer is unavailable so words will be counted",
			"error", err)
		counter = tokens.Words{}
	} else {
		counter = tke
	}

	limiter := ratelimiter.New(cfg.LLMMinInterval, log)

	summaries := completion.NewChatCompleter(completion.Options{
		BaseURL:    cfg.GigaChatBaseURL,
		APIKey:     cfg.LLMAPIKey,
		User:       cfg.GigaChatUser,
		Password:   cfg.GigaChatPassword,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	}, limiter, log)

	if cfg.OpenAIAPIKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so the judge will fail",
			"envVar", "OPENAI_API_KEY")
	}
	verdicts := completion.NewResponsesCompleter(completion.Options{
		APIKey:     cfg.OpenAIAPIKey,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	}, limiter, log)

	j, err := judge.New(verdicts, prompts, cfg.JudgeModel, log)
	if err != nil {
		return nil, fmt.Errorf("create judge: %w", err)
	}

	pipeline := summarizer.New(summaries, prompts, counter, cfg.MapConcurrency, log)

	log.InfoContext(ctx, "Summarizer is initialized",
		"baseURL", cfg.GigaChatBaseURL,
		"judgeModel", cfg.JudgeModel,
		"mapConcurrency", cfg.MapConcurrency,
		"outputDir", outDir)

	return orchestrator.New(
		registry,
		loader.New(),
		pipeline,
		artifact.New(outDir),
		j,
		log,
	), nil
}

func firstModel(registry *preset.Registry) string {
	keys := registry.Keys()
	if len(keys) == 0 {
		return ""
	}

	p, err := registry.Lookup(keys[0])
	if err != nil {
		return ""
	}

	return p.ModelName
}

func printResult(out io.Writer, result orchestrator.Result) {
	for _, a := range result.Artifacts {
		status := "created"
		if a.Reused {
			status = "exists"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", a.ConfigKey, status, a.Path)
	}

	if result.Verdict == nil {
		return
	}

	fmt.Fprintf(out, "\nBest summary: %s\n", result.Verdict.BestFile)
	if reason := strings.TrimSpace(result.Verdict.Reason); reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", reason)
	}
	if raw := strings.TrimSpace(result.Verdict.Raw); raw != "" && raw != strings.TrimSpace(result.Verdict.Reason) {
		fmt.Fprintf(out, "\nJudge answer:\n%s\n", raw)
	}
}
