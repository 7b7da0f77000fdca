package completion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryBackoff = 2 * time.Second
	maxRetryBackoff     = 2 * time.Minute
	maxRetries          = 20
)

type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

func newRetryPolicy(opts Options) retryPolicy {
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	return retryPolicy{
		maxRetries: min(max(opts.MaxRetries, 0), maxRetries),
		backoff:    backoff,
		timeout:    opts.Timeout,
	}
}

// do runs fn with a per-attempt timeout and retries it on rate limits,
// server errors and attempt timeouts.
func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(
		uint64(p.maxRetries), // #nosec G115 -- clamped to [0, maxRetries]
		retry.WithCappedDuration(maxRetryBackoff, retry.NewExponential(p.backoff)),
	)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		err := fn(callCtx)
		if err != nil && isRetryable(ctx, err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusConflict,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		}
	}

	return false
}

// clientOptions builds openai-go options. The SDK's own retries are disabled
// because retryPolicy owns them.
func clientOptions(opts Options) []option.RequestOption {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}

	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	if apiKey := strings.TrimSpace(opts.APIKey); apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}

	switch {
	case opts.User != "":
		tokens := newTokenSource(opts.BaseURL, opts.User, opts.Password, opts.Timeout)
		reqOpts = append(reqOpts, option.WithMiddleware(tokens.middleware))
	case strings.TrimSpace(opts.APIKey) == "":
		// Do not leak OPENAI_API_KEY picked up by the SDK defaults to another endpoint.
		reqOpts = append(reqOpts, option.WithHeaderDel("Authorization"))
	}

	return reqOpts
}
