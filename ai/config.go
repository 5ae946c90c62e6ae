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


package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Host is the base URL of the OpenAI-compatible chat completions API.
	// Example: "https://api.groq.com/openai/v1", "http://localhost:11434/v1"
	Host string

	// APIKey authenticates against Host. Left empty for local servers.
	APIKey string

	// SynthModel is the model used by the synthesis pipeline.
	// Example: "llama-3.3-70b-versatile"
	SynthModel string

	// ChatModel is the model used to answer chat prompts.
	ChatModel string

	// Timeout bounds a single completion call. Zero disables the bound.
	// Default: 120s
	Timeout time.Duration

	// MaxAttempts is the number of tries per completion call, including the first.
	// Default: 1 (no retries)
	MaxAttempts int

	// RetryDelay is the base delay for exponential backoff between attempts.
	RetryDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the completion service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithSynthModel sets the synthesis model identifier.
func WithSynthModel(model string) ConfigOption {
	return func(c *Config) {
		c.SynthModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithModel sets both synthesis and chat models to the same identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.SynthModel = model
		c.ChatModel = model
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRetries sets the attempt count and base backoff delay.
func WithRetries(maxAttempts int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = maxAttempts
		c.RetryDelay = delay
	}
}

// DefaultConfig returns a Config pointed at Groq's OpenAI-compatible endpoint.
func DefaultConfig() *Config {
	return &Config{
		Host:        "https://api.groq.com/openai/v1",
		SynthModel:  "llama-3.3-70b-versatile",
		ChatModel:   "llama-3.3-70b-versatile",
		Timeout:     120 * time.Second,
		MaxAttempts: 1,
		RetryDelay:  time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithHost("http://localhost:11434/v1"),
//       WithModel("qwen2.5:7b"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Groq, Ollama, vLLM, etc).
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/")
		c.Host = c.Host + "/v1"
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.SynthModel == "" {
		return errors.New("ai config: SynthModel is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.Timeout < 0 {
		return errors.New("ai config: Timeout cannot be negative")
	}
	if c.RetryDelay < 0 {
		return errors.New("ai config: RetryDelay cannot be negative")
	}
	return nil
}
