package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/agentmatrix/core"
)

type conversationsDoc struct {
	Conversations []*core.Conversation `json:"conversations"`
}

func (d *conversationsDoc) normalize() {
	if d.Conversations == nil {
		d.Conversations = []*core.Conversation{}
	}
}

// CreateConversation opens a conversation between a user and an agent.
// The agent reference is not checked.
func (s *Store) CreateConversation(ctx context.Context, tenantID, userID, agentID string) (*core.Conversation, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyTenant)
	}

	conv := &core.Conversation{
		ID:        core.NewID(),
		TenantID:  tenantID,
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: core.Now(),
	}

	l := s.lock(conversationsCollection)
	l.Lock()
	defer l.Unlock()

	doc, rev, err := update(ctx, s, conversationsCollection, func(doc *conversationsDoc) error {
		doc.Conversations = append(doc.Conversations, conv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncIndexes(ctx, conversationsCollection, rev, conversationIndexes(doc.Conversations))

	s.logger.Debug("conversation created", "tenant", tenantID, "conversation", conv.ID, "agent", agentID)
	return conv, nil
}

// GetConversation returns a conversation of the tenant.
func (s *Store) GetConversation(ctx context.Context, tenantID, conversationID string) (*core.Conversation, error) {
	doc, _, err := loadDoc[conversationsDoc](ctx, s.backend, conversationsCollection)
	if err != nil {
		return nil, err
	}
	for _, c := range doc.Conversations {
		if c.TenantID == tenantID && c.ID == conversationID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
}

// ListConversationsByAgent returns the tenant's conversations with an agent, oldest first.
func (s *Store) ListConversationsByAgent(ctx context.Context, tenantID, agentID string) ([]*core.Conversation, error) {
	return s.listConversations(ctx, conversationsByAgentIndex, tenantID, agentID)
}

// ListConversationsByUser returns the tenant's conversations of a user, oldest first.
func (s *Store) ListConversationsByUser(ctx context.Context, tenantID, userID string) ([]*core.Conversation, error) {
	return s.listConversations(ctx, conversationsByUserIndex, tenantID, userID)
}

func (s *Store) listConversations(ctx context.Context, indexName, tenantID, key string) ([]*core.Conversation, error) {
	idx, doc, err := s.conversationIndex(ctx, indexName)
	if err != nil {
		return nil, err
	}
	ids := idx[key]
	if len(ids) == 0 {
		return []*core.Conversation{}, nil
	}

	byID := make(map[string]*core.Conversation, len(doc.Conversations))
	for _, c := range doc.Conversations {
		if c.TenantID == tenantID {
			byID[c.ID] = c
		}
	}

	out := make([]*core.Conversation, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) conversationIndex(ctx context.Context, name string) (indexDoc, *conversationsDoc, error) {
	doc, rev, err := loadDoc[conversationsDoc](ctx, s.backend, conversationsCollection)
	if err != nil {
		return nil, nil, err
	}
	idx, ok, err := s.currentIndex(ctx, name, rev)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		return idx, doc, nil
	}

	l := s.lock(conversationsCollection)
	l.Lock()
	defer l.Unlock()

	doc, rev, err = loadDoc[conversationsDoc](ctx, s.backend, conversationsCollection)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("rebuilding index", "index", name, "conversations", len(doc.Conversations))
	indexes := conversationIndexes(doc.Conversations)
	s.syncIndexes(ctx, conversationsCollection, rev, indexes)
	return pick(indexes, name), doc, nil
}
