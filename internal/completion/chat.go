package completion

import (
	"booksummarizer/internal/domain"
	"booksummarizer/internal/ratelimiter"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
)

const finishReasonLength = "length"

// ChatCompleter calls the Chat Completions API of an OpenAI-compatible endpoint.
type ChatCompleter struct {
	client  openai.Client
	retry   retryPolicy
	limiter *ratelimiter.Limiter
	log     *slog.Logger
}

func NewChatCompleter(
	opts Options,
	limiter *ratelimiter.Limiter,
	log *slog.Logger,
) *ChatCompleter {
	return &ChatCompleter{
		client:  openai.NewClient(clientOptions(opts)...),
		retry:   newRetryPolicy(opts),
		limiter: limiter,
		log:     log,
	}
}

// Complete sends the prompt as a single user message. Schema is not
// forwarded: compatible endpoints rarely support structured output.
func (c *ChatCompleter) Complete(ctx context.Context, req Request) (string, error) {
	text, err := c.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: model %s: %w", domain.ErrCompletionService, req.Model, err)
	}

	return text, nil
}

func (c *ChatCompleter) complete(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var resp *openai.ChatCompletion
	err := c.retry.do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, req.Model); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}

		var callErr error
		resp, callErr = c.client.Chat.Completions.New(ctx, params)
		if callErr != nil {
			return fmt.Errorf("do request: %w", callErr)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == finishReasonLength {
		c.log.WarnContext(ctx, "Completion is truncated by max tokens",
			"model", req.Model,
			"maxTokens", req.MaxTokens)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("output text is missing (finish reason = %s)", choice.FinishReason)
	}

	return text, nil
}
