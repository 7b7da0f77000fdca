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
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 2048
	limitMaxOutputTokens int64 = 8192

	statusIncomplete          = "incomplete"
	incompleteMaxOutputTokens = "max_output_tokens"
)

// ResponsesCompleter calls OpenAI's Responses API. It is used for the judge,
// which runs against OpenAI itself and benefits from strict JSON output.
type ResponsesCompleter struct {
	client  openai.Client
	retry   retryPolicy
	limiter *ratelimiter.Limiter
	log     *slog.Logger
}

func NewResponsesCompleter(
	opts Options,
	limiter *ratelimiter.Limiter,
	log *slog.Logger,
) *ResponsesCompleter {
	return &ResponsesCompleter{
		client:  openai.NewClient(clientOptions(opts)...),
		retry:   newRetryPolicy(opts),
		limiter: limiter,
		log:     log,
	}
}

// Complete returns the output text. When the answer is cut by the output
// limit, the limit is doubled and the request repeated up to a hard cap.
func (c *ResponsesCompleter) Complete(ctx context.Context, req Request) (string, error) {
	text, err := c.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: model %s: %w", domain.ErrCompletionService, req.Model, err)
	}

	return text, nil
}

func (c *ResponsesCompleter) complete(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	if req.MaxTokens > 0 {
		maxOutputTokens = int64(req.MaxTokens)
	}

	for {
		params := responses.ResponseNewParams{
			Model:           req.Model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		}
		if req.Schema != nil {
			params.Text = responses.ResponseTextConfigParam{
				Format: responses.ResponseFormatTextConfigUnionParam{
					OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
						Name:        req.Schema.Name,
						Schema:      req.Schema.Definition,
						Strict:      openai.Bool(true),
						Description: openai.String(req.Schema.Description),
					},
				},
			}
		}

		var resp *responses.Response
		err := c.retry.do(ctx, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx, req.Model); err != nil {
				return fmt.Errorf("wait for rate limiter: %w", err)
			}

			var callErr error
			resp, callErr = c.client.Responses.New(ctx, params)
			if callErr != nil {
				return fmt.Errorf("do request: %w", callErr)
			}

			return nil
		})
		if err != nil {
			return "", err
		}

		if resp.Status == statusIncomplete {
			if resp.IncompleteDetails.Reason == incompleteMaxOutputTokens && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				c.log.InfoContext(ctx, "Response is incomplete so output limit is raised",
					"model", req.Model,
					"maxOutputTokens", maxOutputTokens)

				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return text, nil
	}
}
