package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON means the response contained no JSON object.
	ErrNoJSON = errors.New("no JSON object in response")

	// ErrInvalidJSON means the extracted JSON did not decode.
	ErrInvalidJSON = errors.New("invalid JSON in response")
)

var fenceRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n(.*?)```")

// ExtractJSON returns the JSON object embedded in text. A ```json fence is
// preferred when present; the object is the greedy span from the first '{'
// to the last '}'.
func ExtractJSON(text string) (string, error) {
	body := text
	if m := fenceRegex.FindStringSubmatch(text); m != nil && strings.Contains(m[1], "{") {
		body = m[1]
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return body[start : end+1], nil
}

// DecodeJSON extracts the JSON object from text and decodes it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
