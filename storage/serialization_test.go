package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleDoc struct {
	Items []string `json:"items"`
}

func TestMarshalDocument(t *testing.T) {
	data, err := MarshalDocument(sampleDoc{Items: []string{"a<b", "ç"}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"items\": [\n    \"a<b\",\n    \"ç\"\n  ]\n}", string(data))
}

func TestMarshalLogEntry(t *testing.T) {
	data, err := MarshalLogEntry(map[string]string{"content": "x & y"})
	require.NoError(t, err)
	assert.Equal(t, `{"content":"x & y"}`, string(data))
	assert.False(t, strings.Contains(string(data), "\n"))
}

func TestMarshalDocument_Unsupported(t *testing.T) {
	_, err := MarshalDocument(map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestUnmarshal(t *testing.T) {
	var doc sampleDoc
	require.NoError(t, Unmarshal([]byte(`{"items":["x"]}`), &doc))
	assert.Equal(t, []string{"x"}, doc.Items)

	err := Unmarshal([]byte(`{"items":`), &doc)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestValidateName(t *testing.T) {
	valid := []string{"agents", "index/agents_by_tenant", "conv_3f2a-11"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", "../etc/passwd", "index/../agents", "/agents", "agents/", "a b", "agents.json"}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, name)
	}
}
