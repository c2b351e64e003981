package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFakeGmail(t *testing.T, ids []string, perMessage map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"code":401,"message":"Invalid Credentials"}}`)
			return
		}
		if q := r.URL.Query().Get("q"); q != "newer_than:6m" {
			t.Errorf("unexpected list query %q", q)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"messages":[`)
		for i, id := range ids {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%q}`, id)
		}
		fmt.Fprint(w, `]}`)
	})
	mux.HandleFunc("/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/users/me/messages/"):]
		body, ok := perMessage[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"Not Found"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
	return httptest.NewServer(mux)
}

func TestListRecentMessages(t *testing.T) {
	bodies := map[string]string{
		"m1": `{"id":"m1","snippet":"Your 1099 is ready","labelIds":["UNREAD","STARRED"],"internalDate":"1737000000000","payload":{"headers":[{"name":"Subject","value":"Tax form available"},{"name":"From","value":"Fidelity <alerts@fidelity.com>"},{"name":"Date","value":"Thu, 16 Jan 2025 04:00:00 +0000"}]}}`,
		"m2": `{"id":"m2","snippet":"hi","labelIds":[],"payload":{"headers":[]}}`,
	}
	srv := newFakeGmail(t, []string{"m1", "m2", "missing"}, bodies)
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	messages, err := client.ListRecentMessages(context.Background(), "test-token")
	if err != nil {
		t.Fatalf("ListRecentMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages (404 skipped), got %d", len(messages))
	}

	byID := map[string]Message{}
	for _, m := range messages {
		byID[m.ID] = m
	}
	m1 := byID["m1"]
	if m1.Subject != "Tax form available" {
		t.Errorf("unexpected subject %q", m1.Subject)
	}
	if m1.From != "Fidelity <alerts@fidelity.com>" {
		t.Errorf("unexpected from %q", m1.From)
	}
	if m1.Read {
		t.Error("expected UNREAD label to clear Read")
	}
	if !m1.Starred {
		t.Error("expected STARRED label to set Starred")
	}
	want := time.Date(2025, 1, 16, 4, 0, 0, 0, time.UTC)
	if !m1.Date.Equal(want) {
		t.Errorf("unexpected date %v", m1.Date)
	}

	m2 := byID["m2"]
	if m2.Subject != "No Subject" || m2.From != "Unknown Sender" {
		t.Errorf("expected header fallbacks, got subject=%q from=%q", m2.Subject, m2.From)
	}
	if !m2.Read || m2.Starred {
		t.Errorf("expected default flags, got read=%v starred=%v", m2.Read, m2.Starred)
	}
}

func TestListRecentMessagesAuthError(t *testing.T) {
	srv := newFakeGmail(t, nil, nil)
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.ListRecentMessages(context.Background(), "bad-token")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", apiErr.StatusCode)
	}
	if !apiErr.IsAuthError() {
		t.Error("expected IsAuthError for 401")
	}
	if apiErr.Message != "Invalid Credentials" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestGetMessageInternalDateFallback(t *testing.T) {
	bodies := map[string]string{
		"m1": `{"id":"m1","snippet":"","labelIds":[],"internalDate":"1737000000000","payload":{"headers":[]}}`,
	}
	srv := newFakeGmail(t, []string{"m1"}, bodies)
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	msg, err := client.GetMessage(context.Background(), "test-token", "m1")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if msg.Date.IsZero() {
		t.Fatal("expected internalDate fallback to populate Date")
	}
	if got := msg.Date.UnixMilli(); got != 1737000000000 {
		t.Errorf("unexpected date millis %d", got)
	}
}

func TestListRecentMessagesEmpty(t *testing.T) {
	srv := newFakeGmail(t, nil, nil)
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	messages, err := client.ListRecentMessages(context.Background(), "test-token")
	if err != nil {
		t.Fatalf("ListRecentMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}
