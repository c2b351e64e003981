package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractPayload strips one optional surrounding triple-backtick fence and an
// optional leading "json"/"JSON" language tag from model output. Input without
// a fence is returned trimmed and otherwise unchanged.
//
// Models are told to answer with JSON only, but they routinely wrap the
// payload in markdown anyway; the model is an untrusted producer and every
// parse site goes through this one cleanup step.
func ExtractPayload(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") || !strings.HasSuffix(cleaned, "```") {
		return cleaned
	}
	open := strings.Index(cleaned, "\n")
	last := strings.LastIndex(cleaned, "```")
	if open < 0 || open > last {
		// Single-line fence like "```json```"; nothing inside.
		return strings.Trim(cleaned, "`")
	}
	cleaned = strings.TrimSpace(cleaned[open+1 : last])
	lower := strings.ToLower(cleaned)
	if strings.HasPrefix(lower, "json") {
		rest := cleaned[len("json"):]
		if rest == "" {
			return ""
		}
		if rest[0] == '\n' || rest[0] == '\r' {
			return strings.TrimSpace(rest)
		}
	}
	return cleaned
}

// DecodeJSON cleans model output and unmarshals it into v. A payload that is
// not valid JSON for the target type yields ErrMalformedResponse.
func DecodeJSON(text string, v any) error {
	payload := ExtractPayload(text)
	if payload == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
