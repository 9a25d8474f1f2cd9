// Package llm wraps the external text-classifier service and the
// defensive parsing of its responses.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"themeradar/internal/config"
	"themeradar/internal/logger"
	"themeradar/internal/ratelimit"
)

// BucketName is the shared rate-limit bucket all classifier calls go
// through.
const BucketName = "claude"

// Completion is one raw classifier response. Truncated is set when the
// model stopped at the token ceiling; callers still attempt salvage.
type Completion struct {
	Text      string
	Truncated bool
}

// Completer is the single-shot text-classifier contract.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Claude implements Completer against the Anthropic Messages API.
type Claude struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	gate      *ratelimit.Gate
}

// NewClaude creates a classifier client. All calls wait on the shared
// gate before hitting the API.
func NewClaude(cfg config.ClaudeConfig, gate *ratelimit.Gate) *Claude {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Claude{
		client:    &client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		gate:      gate,
	}
}

// Complete sends one prompt and returns the raw text response.
func (c *Claude) Complete(ctx context.Context, prompt string) (*Completion, error) {
	if err := c.gate.Wait(ctx, BucketName); err != nil {
		return nil, fmt.Errorf("rate gate wait interrupted: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no response content from anthropic")
	}

	truncated := resp.StopReason == anthropic.StopReasonMaxTokens
	if truncated {
		logger.Warn("Classifier response truncated at max_tokens (%d)", c.maxTokens)
	}

	return &Completion{
		Text:      strings.TrimSpace(resp.Content[0].Text),
		Truncated: truncated,
	}, nil
}
