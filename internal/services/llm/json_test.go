package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "object wrapped in prose",
			raw:  "Here is the result:\n```json\n{\"a\": 1}\n```\nLet me know!",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "no braces",
			raw:  "I could not produce structured output.",
			ok:   false,
		},
		{
			name: "unbalanced braces",
			raw:  `{"a": 1`,
			ok:   false,
		},
		{
			name: "invalid span",
			raw:  `prefix { not json } suffix`,
			ok:   false,
		},
		{
			name: "empty input",
			raw:  "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.JSONEq(t, tt.want, string(got))
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	require.True(t, ParseJSON(`The outline follows. {"title": "Remote Work"} Done.`, &out))
	assert.Equal(t, "Remote Work", out.Title)

	assert.False(t, ParseJSON(`{"title": 42}`, &out), "type mismatch fails the parse")
	assert.False(t, ParseJSON("no structure here", &out))
}
