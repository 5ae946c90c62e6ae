// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/agentmatrix/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices is returned when the model answers without any choice.
var ErrNoChoices = errors.New("no choices returned from model")

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client      llms.Model
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

var _ ai.Completer = (*Completer)(nil)

// newCompleter is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newCompleter(config *ai.Config) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	token := config.APIKey
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(token),
		openai.WithModel(config.SynthModel),
	)
	if err != nil {
		return nil, err
	}

	return newCompleterWithClient(client, config), nil
}

func newCompleterWithClient(client llms.Model, config *ai.Config) *Completer {
	return &Completer{
		client:      client,
		timeout:     config.Timeout,
		maxAttempts: max(config.MaxAttempts, 1),
		retryDelay:  config.RetryDelay,
		logger:      slog.Default().With("component", "openai-completer"),
	}
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config)
}

// Complete sends the request and returns the trimmed text of the first choice.
// Each attempt carries its own timeout; a timed-out attempt counts as a failure.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		content = append(content, llms.MessageContent{
			Role: messageType(m.Role),
			Parts: []llms.ContentPart{
				llms.TextPart(m.Content),
			},
		})
	}

	var text string
	err := retryWithBackoff(ctx, func() error {
		callCtx, cancel := c.attemptContext(ctx)
		defer cancel()

		response, err := c.client.GenerateContent(callCtx, content,
			llms.WithModel(req.Model),
			llms.WithTemperature(req.Temperature),
			llms.WithMaxTokens(req.MaxTokens))
		if err != nil {
			c.logger.Warn("completion attempt failed", "model", req.Model, "err", err)
			return err
		}
		if len(response.Choices) < 1 {
			return ErrNoChoices
		}
		text = strings.TrimSpace(response.Choices[0].Content)
		return nil
	}, c.maxAttempts, c.retryDelay)
	if err != nil {
		return "", fmt.Errorf("completion with %s: %w", req.Model, err)
	}

	c.logger.Debug("completion finished", "model", req.Model, "chars", len(text))
	return text, nil
}

func (c *Completer) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func messageType(role ai.Role) llms.ChatMessageType {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem
	case ai.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
