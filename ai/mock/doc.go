// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Completer and ai.Provider
// for use in unit tests. The mocks allow tests to run without an external
// completion service and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	completer := mock.NewMockCompleter()
//	text, err := completer.Complete(ctx, req)
//
//	// Custom behavior injection
//	completer := mock.NewMockCompleter().
//	    WithCompleteFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
//	        return "glossary: []", nil
//	    })
//
//	// Check call counts and recorded requests
//	count := completer.CallCount()
//	last := completer.Requests()[count-1]
//
// # Default Behavior
//
//   - MockCompleter: echoes the last message prefixed with "mock:" and the model name
//   - MockProvider: wraps a MockCompleter
package mock
