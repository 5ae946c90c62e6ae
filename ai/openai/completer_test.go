package openai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/agentmatrix/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel implements llms.Model for testing
type fakeModel struct {
	mu       sync.Mutex
	calls    int
	messages []llms.MessageContent
	options  llms.CallOptions
	reply    string
	errs     []error // returned in order before succeeding
	block    bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.messages = messages
	f.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.options)
	}
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func testRequest() ai.CompletionRequest {
	return ai.CompletionRequest{
		Model: "llama-3.3-70b-versatile",
		Messages: []ai.Message{
			ai.SystemMessage("you are a faithful synthesizer"),
			ai.UserMessage("chunk text"),
			{Role: ai.RoleAssistant, Content: "previous answer"},
		},
		Temperature: 0.2,
		MaxTokens:   900,
	}
}

func TestCompleter_Complete(t *testing.T) {
	model := &fakeModel{reply: "  glossary: []\n  "}
	c := newCompleterWithClient(model, ai.DefaultConfig())

	text, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "glossary: []", text, "response is trimmed")

	require.Len(t, model.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.TextContent{Text: "chunk text"}, model.messages[1].Parts[0])

	assert.Equal(t, "llama-3.3-70b-versatile", model.options.Model)
	assert.Equal(t, 0.2, model.options.Temperature)
	assert.Equal(t, 900, model.options.MaxTokens)
}

func TestCompleter_InvalidRequest(t *testing.T) {
	model := &fakeModel{reply: "unused"}
	c := newCompleterWithClient(model, ai.DefaultConfig())

	req := testRequest()
	req.Temperature = 3
	_, err := c.Complete(context.Background(), req)
	require.ErrorIs(t, err, ai.ErrInvalidTemperature)
	assert.Zero(t, model.calls, "invalid requests never reach the model")
}

func TestCompleter_NoRetryByDefault(t *testing.T) {
	apiErr := errors.New("rate limited")
	model := &fakeModel{reply: "ok", errs: []error{apiErr}}
	c := newCompleterWithClient(model, ai.DefaultConfig())

	_, err := c.Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, apiErr)
	assert.Equal(t, 1, model.calls)
}

func TestCompleter_RetriesWhenConfigured(t *testing.T) {
	model := &fakeModel{reply: "ok", errs: []error{errors.New("503"), errors.New("503")}}
	cfg := ai.NewConfig(ai.WithRetries(3, time.Millisecond))
	c := newCompleterWithClient(model, cfg)

	text, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, model.calls)
}

func TestCompleter_Timeout(t *testing.T) {
	model := &fakeModel{block: true}
	cfg := ai.NewConfig(ai.WithTimeout(20 * time.Millisecond))
	c := newCompleterWithClient(model, cfg)

	start := time.Now()
	_, err := c.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCompleter_NoChoices(t *testing.T) {
	c := newCompleterWithClient(&emptyModel{}, ai.DefaultConfig())

	_, err := c.Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoChoices)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (e emptyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, e, prompt, options...)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := ai.DefaultConfig()
	cfg.SynthModel = ""
	_, err := NewProvider(cfg)
	assert.Error(t, err)
}
