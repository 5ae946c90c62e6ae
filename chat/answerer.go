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


// Package chat answers a question against an agent's knowledge matrix.
//
// An Answerer frames the agent's matrix, the trailing conversation history and
// the new question into a single completion call:
//
//	answerer, err := chat.NewAnswerer(completer, chat.WithModel("llama-3.3-70b-versatile"))
//	reply, err := answerer.Answer(ctx, agent, history, "What is the KYC threshold?", "ADMIN")
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/agentmatrix/ai"
	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/governor"
)

const (
	// MaxPromptChars bounds the question after trimming.
	MaxPromptChars = 8000

	// MaxTokens caps every generated reply.
	MaxTokens = 1800

	// DefaultModel is used when no model is configured.
	DefaultModel = "llama-3.3-70b-versatile"
)

var (
	// ErrCompleterRequired indicates a nil completer.
	ErrCompleterRequired = errors.New("chat: completer is required")

	// ErrAgentRequired indicates a nil agent.
	ErrAgentRequired = errors.New("chat: agent is required")
)

// Temperature returns the answering temperature for an agent category.
func Temperature(category core.Category) float64 {
	if category == core.CategoryCorporate {
		return 0.2
	}
	return 0.4
}

// Answerer produces one reply per question. It is safe for concurrent use.
type Answerer struct {
	completer  ai.Completer
	model      string
	maxHistory int
	logger     *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(a *Answerer) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		a.model = model
		return nil
	}
}

// WithMaxHistory sets how many trailing messages are shown to the model.
// Default is governor.DefaultMaxHistoryMsgs.
func WithMaxHistory(n int) Option {
	return func(a *Answerer) error {
		if n < 1 {
			return fmt.Errorf("max history must be positive, got %d", n)
		}
		a.maxHistory = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnswerer creates an Answerer on top of a completion service.
func NewAnswerer(completer ai.Completer, opts ...Option) (*Answerer, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	a := &Answerer{
		completer:  completer,
		model:      DefaultModel,
		maxHistory: governor.DefaultMaxHistoryMsgs,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "chat")
	return a, nil
}

// Answer replies to prompt as the agent. Only the last maxHistory entries of
// history are used; profile names the caller's role and is shown upper-cased.
func (a *Answerer) Answer(ctx context.Context, agent *core.Agent, history []core.Message, prompt, profile string) (string, error) {
	if agent == nil {
		return "", ErrAgentRequired
	}
	prompt = governor.EnforceMaxChars(prompt, MaxPromptChars)
	if len(history) > a.maxHistory {
		history = history[len(history)-a.maxHistory:]
	}

	req := ai.CompletionRequest{
		Model: a.model,
		Messages: []ai.Message{
			ai.SystemMessage(systemPrompt(agent, strings.ToUpper(profile))),
			ai.UserMessage(userPayload(agent, history, prompt)),
		},
		Temperature: Temperature(agent.Category),
		MaxTokens:   MaxTokens,
	}

	a.logger.Debug("answering", "agent", agent.ID, "history", len(history), "matrix_version", agent.MatrixVersion)
	reply, err := a.completer.Complete(ctx, req)
	if err != nil {
		a.logger.Error("completion failed", "agent", agent.ID, "err", err)
		return "", fmt.Errorf("answering as agent %s: %w", agent.ID, err)
	}
	return reply, nil
}
