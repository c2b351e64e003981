package ai

import (
	"errors"
	"testing"
)

func TestExtractPayload(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `[{"id":"1"}]`, `[{"id":"1"}]`},
		{"fenced", "```\n[{\"id\":\"1\"}]\n```", `[{"id":"1"}]`},
		{"fenced with json tag", "```json\n[{\"id\":\"1\"}]\n```", `[{"id":"1"}]`},
		{"fenced with uppercase tag", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"tag on its own line", "```\njson\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
		{"no fence passthrough", "just text", "just text"},
		{"unterminated fence passthrough", "```json\n{\"a\":1}", "```json\n{\"a\":1}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractPayload(tc.in); got != tc.want {
				t.Fatalf("ExtractPayload(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeJSONFencedArray(t *testing.T) {
	var records []struct {
		ID string `json:"id"`
	}
	if err := DecodeJSON("```json\n[{\"id\":\"1\"}]\n```", &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].ID != "1" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	var v map[string]any
	err := DecodeJSON("I am sorry, I cannot help with that.", &v)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got: %v", err)
	}
	if err := DecodeJSON("```json\n```", &v); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse for empty fence, got: %v", err)
	}
}
