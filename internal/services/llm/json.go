package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON locates a JSON object embedded in free-form model output.
// It takes the span from the first '{' to the last '}' and attempts to parse
// it; on parse failure, or when no brace pair exists, ok is false and the
// caller falls back to its stage-specific default structure.
//
// This is the single source of truth for the response-parsing contract:
// model output is never assumed to be well-formed JSON. When the text
// contains multiple JSON objects only the outermost span is taken, which can
// merge nested example JSON inside explanatory prose; callers absorb that
// through their fallbacks.
func ExtractJSON(raw string) (json.RawMessage, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || start >= end {
		return nil, false
	}

	candidate := raw[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

// ParseJSON extracts and unmarshals an embedded JSON object into v.
// Returns false when no parseable object is found or unmarshaling fails.
func ParseJSON(raw string, v interface{}) bool {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return false
	}
	return json.Unmarshal(obj, v) == nil
}
