package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIGeneratorReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  {\"ok\":true}  "}},
			},
		})
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL+"/v1", "test-key", "gpt-4o")
	text, err := g.GenerateText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `{"ok":true}` {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestOpenAIGeneratorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusBadRequest, KindBadRequest},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "upstream says no"},
			})
		}))
		g := NewOpenAIGenerator(srv.URL+"/v1", "", "gpt-4o")
		_, err := g.GenerateText(context.Background(), "", "prompt")
		srv.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected *APIError, got %v", tc.status, err)
		}
		if apiErr.Kind != tc.kind {
			t.Fatalf("status %d: expected kind %q, got %q", tc.status, tc.kind, apiErr.Kind)
		}
		if apiErr.Message != "upstream says no" {
			t.Fatalf("status %d: expected upstream message, got %q", tc.status, apiErr.Message)
		}
	}
}

func TestOpenAIGeneratorTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused

	g := NewOpenAIGenerator(srv.URL+"/v1", "", "gpt-4o")
	_, err := g.GenerateText(context.Background(), "", "prompt")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindUnavailable {
		t.Fatalf("expected unavailable kind, got: %v", err)
	}
}
