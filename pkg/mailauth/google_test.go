package mailauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func TestNewGoogleProviderRequiresCredentials(t *testing.T) {
	if _, err := NewGoogleProvider("", "secret", "http://localhost/cb"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without client id, got: %v", err)
	}
	if _, err := NewGoogleProvider("id", "", "http://localhost/cb"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without client secret, got: %v", err)
	}
}

func TestAuthURLCarriesExpectedParameters(t *testing.T) {
	p, err := NewGoogleProvider("client-1", "secret-1", "http://app.test/api/auth/callback/gmail")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	raw := p.AuthURL("state-token-1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-1" {
		t.Fatalf("missing client_id: %q", raw)
	}
	if q.Get("redirect_uri") != "http://app.test/api/auth/callback/gmail" {
		t.Fatalf("missing redirect_uri: %q", raw)
	}
	if q.Get("state") != "state-token-1" {
		t.Fatalf("missing state: %q", raw)
	}
	if q.Get("scope") != GmailScopeReadonly {
		t.Fatalf("missing scope: %q", raw)
	}
	if q.Get("access_type") != "offline" {
		t.Fatalf("missing access_type=offline: %q", raw)
	}
}

func TestExchangeAndRefreshAgainstFakeEndpoint(t *testing.T) {
	var lastGrant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		lastGrant = r.Form.Get("grant_type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	p, err := NewGoogleProvider("id", "secret", "http://localhost/cb",
		WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	token, err := p.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if token.AccessToken != "at-1" || token.RefreshToken != "rt-1" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if lastGrant != "authorization_code" {
		t.Fatalf("expected authorization_code grant, got %q", lastGrant)
	}

	refreshed, err := p.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken != "at-1" {
		t.Fatalf("unexpected refreshed token: %+v", refreshed)
	}
	if lastGrant != "refresh_token" {
		t.Fatalf("expected refresh_token grant, got %q", lastGrant)
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	p, err := NewGoogleProvider("id", "secret", "http://localhost/cb")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := p.Refresh(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty refresh token")
	}
}
