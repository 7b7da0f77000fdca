package domain

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnknownConfiguration = errors.New("unknown configuration")
	ErrCompletionService    = errors.New("completion service failure")
	ErrMissingArtifact      = errors.New("missing artifact")
	ErrIO                   = errors.New("io failure")
	ErrEmptyDocument        = errors.New("document is empty")
	ErrReduceDiverged       = errors.New("reduce did not fit token budget")
)
