package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/storage"
)

func messageLog(conversationID string) (string, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyConversationID)
	}
	name := messageLogPrefix + conversationID
	if err := storage.ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	return name, nil
}

// AppendMessage adds a message to the end of a conversation's log.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role core.MessageRole, content string) (*core.Message, error) {
	if err := core.ValidateMessageRole(role); err != nil {
		return nil, err
	}
	name, err := messageLog(conversationID)
	if err != nil {
		return nil, err
	}

	msg := &core.Message{Role: role, Content: content, CreatedAt: core.Now()}
	entry, err := storage.MarshalLogEntry(msg)
	if err != nil {
		return nil, err
	}
	if err := s.backend.AppendLog(ctx, name, entry); err != nil {
		return nil, fmt.Errorf("appending to %s: %w", name, err)
	}
	return msg, nil
}

// LoadMessages returns the whole log of a conversation in append order.
func (s *Store) LoadMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	name, err := messageLog(conversationID)
	if err != nil {
		return nil, err
	}
	entries, err := s.backend.ReadLog(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return decodeMessages(entries)
}

// LoadLastMessages returns at most the last limit messages in append order.
// A limit of zero or less returns nothing.
func (s *Store) LoadLastMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	name, err := messageLog(conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []core.Message{}, nil
	}
	entries, err := s.backend.TailLog(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return decodeMessages(entries)
}

func decodeMessages(entries [][]byte) ([]core.Message, error) {
	out := make([]core.Message, 0, len(entries))
	for i, e := range entries {
		var m core.Message
		if err := storage.Unmarshal(e, &m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
