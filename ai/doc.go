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


// Package ai provides abstractions for the language-model services used by agentmatrix.
//
// The synthesis pipeline and the chat answerer depend only on the Completer
// interface defined here, never on a concrete client. A Completer receives a
// role-tagged message list, a model id, a temperature and an output-token cap,
// and returns generated text or an error.
//
// # Implementation Packages
//
//   - ai/openai: production implementation for OpenAI-compatible APIs (Groq, Ollama, vLLM)
//   - ai/mock: concurrency-safe test double recording every request
//
// # Constructor Return Type Pattern
//
// Public production constructors (openai.NewProvider, openai.NewCompleter)
// return interface types. Test constructors (mock.NewMockCompleter) return
// concrete types so tests can inspect recorded requests and inject behavior.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("GROQ_API_KEY")))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	text, err := provider.Completer().Complete(ctx, ai.CompletionRequest{
//	    Model:       cfg.ChatModel,
//	    Messages:    []ai.Message{ai.SystemMessage("Be brief."), ai.UserMessage("Hi")},
//	    Temperature: 0.2,
//	    MaxTokens:   256,
//	})
package ai
