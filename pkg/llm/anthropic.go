package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxTokens   = 2048
	defaultMaxTries    = 3
	defaultCallTimeout = 60 * time.Second
)

// AnthropicConfig holds the configuration for the Anthropic client.
type AnthropicConfig struct {
	Logger      *slog.Logger
	Model       anthropic.Model
	MaxTokens   int64
	MaxTries    uint          // per-call retry budget for transient failures
	CallTimeout time.Duration // timeout applied to each individual API call
}

// Anthropic implements Client using the Anthropic API. The API key is
// read from ANTHROPIC_API_KEY by the underlying SDK.
type Anthropic struct {
	log    *slog.Logger
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropic creates a new Anthropic-based LLM client.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = defaultMaxTries
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Anthropic{
		log:    cfg.Logger,
		client: anthropic.NewClient(),
		cfg:    cfg,
	}
}

// Complete sends a prompt to Claude and returns the response text.
// Transient failures (network, timeout, rate limit) are retried with
// exponential backoff up to the per-call budget; auth failures are not.
func (c *Anthropic) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		if attempt > 1 && c.log != nil {
			c.log.Warn("llm: retrying API call", "attempt", attempt)
		}
		return c.complete(ctx, systemPrompt, userPrompt)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.cfg.MaxTries),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Anthropic) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	if c.log != nil {
		c.log.Debug("llm: API call starting", "model", c.cfg.Model, "userPromptLen", len(userPrompt))
	}

	msg, err := c.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})

	duration := time.Since(start)
	if err != nil {
		cerr := classifyError(err)
		if c.log != nil {
			c.log.Warn("llm: API call failed", "duration", duration, "kind", cerr.Kind, "error", err)
		}
		if cerr.Kind == CallErrorAuth {
			return "", backoff.Permanent(error(cerr))
		}
		return "", cerr
	}

	if c.log != nil {
		c.log.Debug("llm: API call completed", "duration", duration, "stopReason", msg.StopReason)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", backoff.Permanent(fmt.Errorf("no text content in response"))
}

// classifyError maps an SDK error to a CallError kind.
func classifyError(err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: CallErrorTimeout, Err: err}
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &CallError{Kind: CallErrorAuth, Err: err}
		case http.StatusTooManyRequests:
			return &CallError{Kind: CallErrorRateLimited, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &CallError{Kind: CallErrorTimeout, Err: err}
		}
	}

	return &CallError{Kind: CallErrorNetwork, Err: err}
}
