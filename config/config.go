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


// Package config loads process configuration for agentmatrix.
//
// Values are resolved in order, later sources winning:
//   - built-in defaults
//   - an optional YAML file
//   - a .env file, for keys not present in the real environment
//   - environment variables
//
// The result is read once at startup. Budgets derived from it are immutable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/agentmatrix/ai"
	"github.com/poiesic/agentmatrix/governor"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// Config is the full process configuration.
type Config struct {
	Budgets   BudgetsConfig   `yaml:"budgets"`
	LLM       LLMConfig       `yaml:"llm"`
	Storage   StorageConfig   `yaml:"storage"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

// BudgetsConfig bounds synthesis and chat work.
type BudgetsConfig struct {
	MaxTotalChars  int `yaml:"max_total_chars"`
	ChunkChars     int `yaml:"chunk_chars"`
	MaxPartials    int `yaml:"max_partials"`
	MaxHistoryMsgs int `yaml:"max_history_msgs"`
}

// LLMConfig configures the completion service.
type LLMConfig struct {
	// Host is an OpenAI-compatible base URL.
	// Default: https://api.groq.com/openai/v1
	Host string `yaml:"host"`

	// APIKey is usually supplied through GROQ_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`

	SynthModel string `yaml:"synth_model"`
	ChatModel  string `yaml:"chat_model"`

	// Timeout bounds one completion call.
	// Default: 120s
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts includes the first try.
	// Default: 1
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// StorageConfig selects where the knowledge store lives.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`

	// Backend is "file" (JSON documents) or "badger".
	Backend string `yaml:"backend"`
}

// SynthesisConfig tunes the synthesis pipeline.
type SynthesisConfig struct {
	// MapWorkers sizes the worker pool shared by URL resolution and the map phase.
	MapWorkers int `yaml:"map_workers"`

	URLTimeout time.Duration `yaml:"url_timeout"`

	// Deadline bounds a whole run. Zero means no deadline.
	Deadline time.Duration `yaml:"deadline"`

	TolerateMapFailures bool `yaml:"tolerate_map_failures"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	b := governor.DefaultBudgets()
	llm := ai.DefaultConfig()
	return &Config{
		Budgets: BudgetsConfig{
			MaxTotalChars:  b.MaxTotalChars,
			ChunkChars:     b.ChunkChars,
			MaxPartials:    b.MaxPartials,
			MaxHistoryMsgs: b.MaxHistoryMsgs,
		},
		LLM: LLMConfig{
			Host:        llm.Host,
			SynthModel:  llm.SynthModel,
			ChatModel:   llm.ChatModel,
			Timeout:     llm.Timeout,
			MaxAttempts: llm.MaxAttempts,
			RetryDelay:  llm.RetryDelay,
		},
		Storage: StorageConfig{
			DataDir: "data",
			Backend: BackendFile,
		},
		Synthesis: SynthesisConfig{
			MapWorkers: 4,
			URLTimeout: 10 * time.Second,
		},
	}
}

// Load resolves the configuration from path (skipped when empty), the .env
// file of the working directory and the process environment, then validates it.
func Load(path string) (*Config, error) {
	return load(path, DefaultEnvFile, os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// readEnvFile parses a dotenv file without touching the process environment.
// A missing file yields no values.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"GROQ_API_KEY":  &c.LLM.APIKey,
		"LLM_HOST":      &c.LLM.Host,
		"SYNTH_MODEL":   &c.LLM.SynthModel,
		"CHAT_MODEL":    &c.LLM.ChatModel,
		"DATA_DIR":      &c.Storage.DataDir,
		"STORE_BACKEND": &c.Storage.Backend,
	}
	for key, dst := range strs {
		if v, ok := env(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"MAX_TOTAL_CHARS":         &c.Budgets.MaxTotalChars,
		"CHUNK_CHARS":             &c.Budgets.ChunkChars,
		"MAX_PARTIALS":            &c.Budgets.MaxPartials,
		"MAX_HISTORY_MSGS":        &c.Budgets.MaxHistoryMsgs,
		"MAP_WORKERS":             &c.Synthesis.MapWorkers,
		"COMPLETION_MAX_ATTEMPTS": &c.LLM.MaxAttempts,
	}
	for key, dst := range ints {
		v, ok := env(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"COMPLETION_TIMEOUT": &c.LLM.Timeout,
		"RETRY_DELAY":        &c.LLM.RetryDelay,
		"URL_TIMEOUT":        &c.Synthesis.URLTimeout,
		"SYNTHESIS_DEADLINE": &c.Synthesis.Deadline,
	}
	for key, dst := range durations {
		v, ok := env(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := env("TOLERATE_MAP_FAILURES"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TOLERATE_MAP_FAILURES: %w", err)
		}
		c.Synthesis.TolerateMapFailures = b
	}
	return nil
}

// Validate checks budgets, the storage backend and the pipeline settings.
func (c *Config) Validate() error {
	if err := c.GovernorBudgets().Validate(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case BackendFile, BackendBadger:
	default:
		return fmt.Errorf("config: unknown storage backend %q (want %q or %q)", c.Storage.Backend, BackendFile, BackendBadger)
	}
	if c.Storage.DataDir == "" {
		return errors.New("config: data dir is required")
	}
	if c.Synthesis.MapWorkers < 1 {
		return fmt.Errorf("config: map workers must be positive, got %d", c.Synthesis.MapWorkers)
	}
	if c.Synthesis.URLTimeout <= 0 {
		return errors.New("config: URL timeout must be positive")
	}
	if c.Synthesis.Deadline < 0 {
		return errors.New("config: synthesis deadline cannot be negative")
	}
	return nil
}

// GovernorBudgets materialises the budgets.
func (c *Config) GovernorBudgets() governor.Budgets {
	return governor.Budgets{
		MaxTotalChars:  c.Budgets.MaxTotalChars,
		ChunkChars:     c.Budgets.ChunkChars,
		MaxPartials:    c.Budgets.MaxPartials,
		MaxHistoryMsgs: c.Budgets.MaxHistoryMsgs,
	}
}

// AIConfig builds the completion service configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.LLM.Host),
		ai.WithAPIKey(c.LLM.APIKey),
		ai.WithSynthModel(c.LLM.SynthModel),
		ai.WithChatModel(c.LLM.ChatModel),
		ai.WithTimeout(c.LLM.Timeout),
		ai.WithRetries(c.LLM.MaxAttempts, c.LLM.RetryDelay),
	)
}
