package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DecodeJSON extracts the first JSON object from a model answer and
// unmarshals it into v. Markdown code fences and surrounding prose are
// ignored.
func DecodeJSON(text string, v any) error {
	raw := ExtractJSON(text)
	if raw == "" {
		if strings.TrimSpace(text) == "" {
			return ErrEmptyResponse
		}
		return eris.Wrap(ErrInvalidJSON, "llm: no json object in answer")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return eris.Wrapf(ErrInvalidJSON, "llm: decode: %v", err)
	}
	return nil
}

// ExtractJSON returns the span from the first '{' to the last '}' of text,
// after removing code fences. It returns "" when there is no such span.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
