package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeLLMJSON decodes JSON from an LLM response, handling common formatting
// quirks: code fences, prose around the object, and syntax slips such as
// trailing commas or unquoted keys.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := SanitizeJSONPayload(trimmed)
	if sanitized == "" {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	if sanitized != trimmed {
		if err := json.Unmarshal([]byte(sanitized), target); err == nil {
			return nil
		}
	}

	repaired, repairErr := jsonrepair.JSONRepair(sanitized)
	if repairErr != nil {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(sanitized))
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("%w (repaired payload snippet: %s)", err, summarizePayloadSnippet(repaired))
	}
	return nil
}

// LooksLikeJSON reports whether the content, once code fences are removed,
// starts with an object or array.
func LooksLikeJSON(content string) bool {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// SanitizeJSONPayload strips code fences and surrounding prose, returning the
// outermost object or array. Content without braces is returned unchanged.
func SanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
