package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced",
			in:   "Here you go:\n```json\n{\"tweet\": \"hi\"}\n```\nSources: {1}",
			want: `{"tweet": "hi"}`,
		},
		{
			name: "bare",
			in:   `prefix {"a": {"b": 1}} suffix`,
			want: `{"a": {"b": 1}}`,
		},
		{
			name: "unlabelled fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "unterminated fence falls back to greedy scan",
			in:   "```json\n{\"a\": 1}",
			want: `{"a": 1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("no json here")
	assert.True(t, errors.Is(err, ErrNoJSON))

	_, err = ExtractJSON("} backwards {")
	assert.True(t, errors.Is(err, ErrNoJSON))
}

func TestDecodeJSONInvalid(t *testing.T) {
	var v map[string]any
	err := DecodeJSON("```json\n{\"a\": }\n```", &v)
	assert.True(t, errors.Is(err, ErrInvalidJSON))
}
