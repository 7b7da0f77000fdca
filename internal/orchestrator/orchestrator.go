// Package orchestrator runs summarization for one preset or for every preset
// of the registry, reusing summaries that are already on disk.
package orchestrator

import (
	"booksummarizer/internal/domain"
	"booksummarizer/internal/loader"
	"booksummarizer/internal/preset"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Summarizer interface {
	Summarize(ctx context.Context, doc domain.Document, p domain.Preset) (string, error)
}

type Judge interface {
	SelectBest(ctx context.Context, paths []string) (domain.Verdict, error)
}

// Sink stores summaries; a file that exists is a finished summary.
type Sink interface {
	Path(bookPath, key string) string
	Exists(path string) (bool, error)
	Read(path string) (string, error)
	Write(path, content string) error
}

type Result struct {
	Artifacts []domain.Artifact
	// Verdict is set only when every preset was run.
	Verdict *domain.Verdict
}

type Orchestrator struct {
	registry   *preset.Registry
	loader     loader.Loader
	summarizer Summarizer
	sink       Sink
	judge      Judge
	documents  *documentCache
	log        *slog.Logger
}

func New(
	registry *preset.Registry,
	bookLoader loader.Loader,
	summarizer Summarizer,
	sink Sink,
	judge Judge,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		loader:     bookLoader,
		summarizer: summarizer,
		sink:       sink,
		judge:      judge,
		documents:  newDocumentCache(),
		log:        log,
	}
}

// Run dispatches on key: preset.AllKey runs every preset and the judge,
// any other key must be registered.
func (o *Orchestrator) Run(ctx context.Context, bookPath, key string) (Result, error) {
	if err := o.registry.Check(key); err != nil {
		return Result{}, err
	}

	if preset.IsAll(key) {
		return o.RunAll(ctx, bookPath)
	}

	artifact, err := o.RunOne(ctx, bookPath, key)
	if err != nil {
		return Result{}, err
	}

	return Result{Artifacts: []domain.Artifact{artifact}}, nil
}

// RunOne returns the stored summary when its file exists; otherwise it
// summarizes the book and stores the result.
func (o *Orchestrator) RunOne(ctx context.Context, bookPath, key string) (domain.Artifact, error) {
	p, err := o.registry.Lookup(key)
	if err != nil {
		return domain.Artifact{}, err
	}

	path := o.sink.Path(bookPath, key)

	exists, err := o.sink.Exists(path)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("check summary %s: %w", path, err)
	}
	if exists {
		content, readErr := o.sink.Read(path)
		if readErr != nil {
			return domain.Artifact{}, fmt.Errorf("read existing summary: %w", readErr)
		}

		o.log.InfoContext(ctx, "Summary already exists",
			"preset", key,
			"path", path)

		return domain.Artifact{
			Path:      path,
			ConfigKey: key,
			Content:   content,
			Reused:    true,
		}, nil
	}

	doc, err := o.document(ctx, bookPath)
	if err != nil {
		return domain.Artifact{}, err
	}

	o.log.InfoContext(ctx, "Preset is started",
		"preset", key,
		"model", p.ModelName,
		"book", doc.Title)
	startedAt := time.Now()

	content, err := o.summarizer.Summarize(ctx, doc, p)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("summarize %s with %s: %w", bookPath, key, err)
	}

	if err = o.sink.Write(path, content); err != nil {
		return domain.Artifact{}, fmt.Errorf("save summary: %w", err)
	}

	o.log.InfoContext(ctx, "Summary is saved",
		"preset", key,
		"path", path,
		"duration", time.Since(startedAt))

	return domain.Artifact{
		Path:      path,
		ConfigKey: key,
		Content:   content,
	}, nil
}

// RunAll runs every preset in registry order and then asks the judge. The
// first failing preset stops the batch.
func (o *Orchestrator) RunAll(ctx context.Context, bookPath string) (Result, error) {
	keys := o.registry.Keys()
	artifacts := make([]domain.Artifact, 0, len(keys))
	paths := make([]string, 0, len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return Result{Artifacts: artifacts}, err
		}

		artifact, err := o.RunOne(ctx, bookPath, key)
		if err != nil {
			return Result{Artifacts: artifacts}, err
		}

		artifacts = append(artifacts, artifact)
		paths = append(paths, artifact.Path)
	}

	verdict, err := o.judge.SelectBest(ctx, paths)
	if err != nil {
		return Result{Artifacts: artifacts}, fmt.Errorf("compare summaries: %w", err)
	}

	o.log.InfoContext(ctx, "Best summary is chosen",
		"file", verdict.BestFile,
		"reason", verdict.Reason)

	return Result{Artifacts: artifacts, Verdict: &verdict}, nil
}

func (o *Orchestrator) document(ctx context.Context, bookPath string) (domain.Document, error) {
	doc, cached, err := o.documents.load(ctx, bookPath, o.loader.Load)
	if err != nil {
		o.log.ErrorContext(ctx, "Failed to load document",
			"path", bookPath,
			"error", err)
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}

	if !cached {
		o.log.InfoContext(ctx, "Document is loaded",
			"path", bookPath,
			"title", doc.Title,
			"sections", len(doc.Sections))
	}

	return doc, nil
}
