package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/agentmatrix/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCompleter_Default(t *testing.T) {
	m := NewMockCompleter()
	text, err := m.Complete(context.Background(), ai.CompletionRequest{
		Model:    "m",
		Messages: []ai.Message{ai.SystemMessage("sys"), ai.UserMessage("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "mock:m:hello", text)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockCompleter_CustomFunc(t *testing.T) {
	wantErr := errors.New("boom")
	m := NewMockCompleter().WithCompleteFunc(func(context.Context, ai.CompletionRequest) (string, error) {
		return "", wantErr
	})
	_, err := m.Complete(context.Background(), ai.CompletionRequest{})
	assert.ErrorIs(t, err, wantErr)
	assert.Len(t, m.Requests(), 1)

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockCompleter_Concurrent(t *testing.T) {
	m := NewMockCompleter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Complete(context.Background(), ai.CompletionRequest{Messages: []ai.Message{ai.UserMessage("x")}})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp := p.(*MockProvider)
	assert.Same(t, mp.GetMockCompleter(), p.Completer())
	assert.NoError(t, p.Close())
}
