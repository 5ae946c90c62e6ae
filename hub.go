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


// Package agentmatrix wires the knowledge store, the synthesis pipeline and
// the chat answerer into a Hub that enforces tenant and ownership checks.
package agentmatrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/agentmatrix/ai"
	"github.com/poiesic/agentmatrix/ai/openai"
	"github.com/poiesic/agentmatrix/chat"
	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/fetch"
	"github.com/poiesic/agentmatrix/governor"
	"github.com/poiesic/agentmatrix/knowledge"
	"github.com/poiesic/agentmatrix/storage"
	"github.com/poiesic/agentmatrix/storage/badger"
	"github.com/poiesic/agentmatrix/storage/file"
	"github.com/poiesic/agentmatrix/synthesis"
)

// ErrForbidden is returned when the principal may not act on the target.
var ErrForbidden = errors.New("forbidden")

// Storage backend names accepted by WithBackend.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

const (
	// DefaultIngestTemperature is used when an ingest request leaves the temperature unset.
	DefaultIngestTemperature = 0.2

	// ChatHistoryWindow is how many trailing messages are loaded per chat turn.
	ChatHistoryWindow = 20

	previewChars = 800
)

// Hub is the entry point for tenant-scoped agent operations.
// It is safe for concurrent use.
type Hub struct {
	backend     storage.CollectionStore
	store       *knowledge.Store
	provider    ai.Provider
	synthesizer *synthesis.Synthesizer
	answerer    *chat.Answerer
	logger      *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*hubOptions)

type hubOptions struct {
	aiConfig         *ai.Config
	provider         ai.Provider
	fetcher          fetch.Fetcher
	backend          string
	budgets          governor.Budgets
	synthesisOptions []synthesis.Option
	storeOptions     []knowledge.Option
	logger           *slog.Logger
}

// WithAIConfig sets the completion service configuration.
// Its models are used even when WithProvider supplies the provider.
func WithAIConfig(cfg *ai.Config) HubOption {
	return func(o *hubOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an existing provider instead of building one from the AI config.
// The Hub closes it on Close.
func WithProvider(p ai.Provider) HubOption {
	return func(o *hubOptions) {
		o.provider = p
	}
}

// WithFetcher sets the URL fetcher used during ingestion.
func WithFetcher(f fetch.Fetcher) HubOption {
	return func(o *hubOptions) {
		o.fetcher = f
	}
}

// WithBackend selects the storage backend, BackendFile or BackendBadger.
func WithBackend(name string) HubOption {
	return func(o *hubOptions) {
		o.backend = name
	}
}

// WithBudgets sets the synthesis and chat budgets.
func WithBudgets(b governor.Budgets) HubOption {
	return func(o *hubOptions) {
		o.budgets = b
	}
}

// WithSynthesisOptions passes extra options to the synthesizer.
func WithSynthesisOptions(opts ...synthesis.Option) HubOption {
	return func(o *hubOptions) {
		o.synthesisOptions = append(o.synthesisOptions, opts...)
	}
}

// WithStoreOptions passes extra options to the knowledge store.
func WithStoreOptions(opts ...knowledge.Option) HubOption {
	return func(o *hubOptions) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) HubOption {
	return func(o *hubOptions) {
		o.logger = logger
	}
}

// NewHub opens the data directory and builds every component.
func NewHub(dataDir string, opts ...HubOption) (*Hub, error) {
	options := &hubOptions{
		aiConfig: ai.DefaultConfig(),
		backend:  BackendFile,
		budgets:  governor.DefaultBudgets(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	backend, err := openBackend(options.backend, dataDir, logger)
	if err != nil {
		return nil, err
	}

	store, err := knowledge.NewStore(backend, append([]knowledge.Option{knowledge.WithLogger(logger)}, options.storeOptions...)...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	fetcher := options.fetcher
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(fetch.WithLogger(logger))
	}

	synthOpts := []synthesis.Option{
		synthesis.WithLogger(logger),
		synthesis.WithBudgets(options.budgets),
		synthesis.WithModel(options.aiConfig.SynthModel),
	}
	synthesizer, err := synthesis.NewSynthesizer(provider.Completer(), fetcher, append(synthOpts, options.synthesisOptions...)...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	answerer, err := chat.NewAnswerer(provider.Completer(),
		chat.WithLogger(logger),
		chat.WithModel(options.aiConfig.ChatModel),
		chat.WithMaxHistory(options.budgets.MaxHistoryMsgs),
	)
	if err != nil {
		synthesizer.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Hub{
		backend:     backend,
		store:       store,
		provider:    provider,
		synthesizer: synthesizer,
		answerer:    answerer,
		logger:      logger.With("component", "hub"),
	}, nil
}

func openBackend(name, dataDir string, logger *slog.Logger) (storage.CollectionStore, error) {
	switch name {
	case BackendFile:
		return file.NewStore(dataDir, file.WithLogger(logger))
	case BackendBadger:
		return badger.NewStore(dataDir)
	}
	return nil, fmt.Errorf("unknown storage backend %q", name)
}

// Close releases the worker pool, the provider and the storage backend.
func (h *Hub) Close() error {
	h.synthesizer.Release()
	if err := h.provider.Close(); err != nil {
		h.logger.Error("error closing AI provider", "err", err)
	}
	if err := h.backend.Close(); err != nil {
		h.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

// Store returns the underlying knowledge store.
func (h *Hub) Store() *knowledge.Store {
	return h.store
}

// Login authenticates a user and returns the principal it acts as.
func (h *Hub) Login(ctx context.Context, tenantID, email, password string) (core.Principal, error) {
	user, err := h.store.Authenticate(ctx, tenantID, email, password)
	if err != nil {
		return core.Principal{}, err
	}
	return user.Principal(), nil
}

// CreateAgent registers an agent owned by the principal. Only admins may create agents.
func (h *Hub) CreateAgent(ctx context.Context, p core.Principal, name string, category core.Category, specialty string) (*core.Agent, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can create agents", ErrForbidden)
	}
	return h.store.CreateAgent(ctx, p.TenantID, p.UserID, name, category, specialty)
}

// ListAgents returns the agents the principal can see.
func (h *Hub) ListAgents(ctx context.Context, p core.Principal) ([]*core.Agent, error) {
	return h.store.ListAgents(ctx, p.TenantID, p.UserID, p.Role)
}

// accessibleAgent loads an agent of the principal's tenant and checks access.
func (h *Hub) accessibleAgent(ctx context.Context, p core.Principal, agentID string) (*core.Agent, error) {
	agent, err := h.store.GetAgent(ctx, p.TenantID, agentID)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(agent) {
		return nil, fmt.Errorf("%w: no access to agent %s", ErrForbidden, agentID)
	}
	return agent, nil
}

// IngestRequest carries the raw material for one matrix rebuild.
type IngestRequest struct {
	Docs []string
	URLs []string

	// Temperature defaults to DefaultIngestTemperature when nil.
	Temperature *float64
}

// IngestResult reports the committed matrix.
type IngestResult struct {
	AgentID       string
	MatrixVersion int
	MatrixPreview string
	Synthesis     *synthesis.Result
}

// Ingest synthesizes a new matrix for the agent and commits it.
// Nothing is written when synthesis fails.
func (h *Hub) Ingest(ctx context.Context, p core.Principal, agentID string, req IngestRequest) (*IngestResult, error) {
	agent, err := h.accessibleAgent(ctx, p, agentID)
	if err != nil {
		return nil, err
	}

	temperature := DefaultIngestTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	result, err := h.synthesizer.Synthesize(ctx, synthesis.Request{
		Specialty:   agent.Specialty,
		Docs:        req.Docs,
		URLs:        req.URLs,
		Temperature: temperature,
	})
	if err != nil {
		h.logger.Error("ingest failed", "tenant", p.TenantID, "agent", agentID, "err", err)
		return nil, err
	}

	updated, err := h.store.UpdateAgentMatrix(ctx, p.TenantID, agentID, result.Matrix)
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		AgentID:       agentID,
		MatrixVersion: updated.MatrixVersion,
		MatrixPreview: Preview(result.Matrix),
		Synthesis:     result,
	}, nil
}

// Preview returns the first 800 characters of a matrix, marked with an
// ellipsis when the matrix is longer.
func Preview(matrix string) string {
	if governor.Len(matrix) > previewChars {
		return governor.Truncate(matrix, previewChars) + "…"
	}
	return matrix
}

// ChatRequest is one user turn. An empty ConversationID starts a new conversation.
type ChatRequest struct {
	AgentID        string
	ConversationID string
	Message        string
}

// ChatResult is the reply to one turn.
type ChatResult struct {
	ConversationID string
	AgentID        string
	Answer         string
}

// Chat records the user message, answers it from the agent's matrix and
// records the reply.
func (h *Hub) Chat(ctx context.Context, p core.Principal, req ChatRequest) (*ChatResult, error) {
	agent, err := h.accessibleAgent(ctx, p, req.AgentID)
	if err != nil {
		return nil, err
	}

	convID := req.ConversationID
	if convID != "" {
		if _, err := h.store.GetConversation(ctx, p.TenantID, convID); err != nil {
			return nil, err
		}
	} else {
		conv, err := h.store.CreateConversation(ctx, p.TenantID, p.UserID, agent.ID)
		if err != nil {
			return nil, err
		}
		convID = conv.ID
	}

	if _, err := h.store.AppendMessage(ctx, convID, core.MessageRoleUser, req.Message); err != nil {
		return nil, err
	}
	history, err := h.store.LoadLastMessages(ctx, convID, ChatHistoryWindow)
	if err != nil {
		return nil, err
	}

	reply, err := h.answerer.Answer(ctx, agent, history, req.Message, string(p.Role))
	if err != nil {
		return nil, err
	}
	if _, err := h.store.AppendMessage(ctx, convID, core.MessageRoleAssistant, reply); err != nil {
		return nil, err
	}

	return &ChatResult{ConversationID: convID, AgentID: agent.ID, Answer: reply}, nil
}

// Conversations lists the principal's own conversations.
func (h *Hub) Conversations(ctx context.Context, p core.Principal) ([]*core.Conversation, error) {
	return h.store.ListConversationsByUser(ctx, p.TenantID, p.UserID)
}

// History returns every message of a conversation. Admins can read any
// conversation of their tenant, everyone else only their own.
func (h *Hub) History(ctx context.Context, p core.Principal, conversationID string) ([]core.Message, error) {
	conv, err := h.store.GetConversation(ctx, p.TenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && conv.UserID != p.UserID {
		return nil, fmt.Errorf("%w: no access to conversation %s", ErrForbidden, conversationID)
	}
	return h.store.LoadMessages(ctx, conversationID)
}
