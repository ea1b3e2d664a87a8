package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*\n")
	fenceCloseRe = regexp.MustCompile("\n```$")
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON pulls the JSON object out of a model response, tolerating
// markdown fences and prose around it, and decodes it into out.
func extractJSON(text string, out interface{}) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = fenceOpenRe.ReplaceAllString(trimmed, "")
		trimmed = fenceCloseRe.ReplaceAllString(trimmed, "")
	}

	object := jsonObjectRe.FindString(trimmed)
	if object == "" {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(object), out); err != nil {
		return fmt.Errorf("invalid JSON structure: %w", err)
	}
	return nil
}
