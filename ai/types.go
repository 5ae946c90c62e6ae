package ai

import (
	"errors"
	"fmt"
)

// Role tags a message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// CompletionRequest is everything the completion service needs for one call.
type CompletionRequest struct {
	// Model is the model identifier, e.g. "llama-3.3-70b-versatile".
	Model string

	// Messages is the ordered conversation handed to the model.
	Messages []Message

	// Temperature must lie in [0, 2].
	Temperature float64

	// MaxTokens caps the generated output.
	MaxTokens int
}

var (
	// ErrEmptyMessages indicates a request without messages.
	ErrEmptyMessages = errors.New("completion request has no messages")

	// ErrInvalidTemperature indicates a temperature outside [0, 2].
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 2")

	// ErrInvalidMaxTokens indicates a non-positive output cap.
	ErrInvalidMaxTokens = errors.New("max tokens must be positive")
)

// Validate checks the request against the completion service contract.
func (r CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyMessages
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, r.Temperature)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, r.MaxTokens)
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return nil
}
