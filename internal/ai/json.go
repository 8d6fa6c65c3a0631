package ai

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	braceSpan  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON decodes the first JSON object found in a model reply into v.
// It tries the whole text, then a fenced code block, then the widest
// {...} span.
func ExtractJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return errors.Wrap(json.Unmarshal([]byte(m[1]), v), "decode fenced json")
	}
	if m := braceSpan.FindString(text); m != "" {
		return errors.Wrap(json.Unmarshal([]byte(m), v), "decode json object")
	}
	return errors.Errorf("no valid JSON found in response: %s", truncate(text, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
