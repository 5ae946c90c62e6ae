package ai

import "context"

// Completer turns a role-tagged conversation into generated text.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends the request to the model and returns the generated text,
	// trimmed of surrounding whitespace.
	// Returns an error on transport failure, API error or timeout.
	// Implementations do not retry unless explicitly configured to.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Provider aggregates AI services for initialization and lifecycle management.
type Provider interface {
	// Completer returns the completion service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
