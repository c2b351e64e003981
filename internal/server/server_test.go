package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"taxfolio/internal/app"
	"taxfolio/pkg/domain"
	"taxfolio/pkg/gmail"
	"taxfolio/pkg/storage"
	"taxfolio/pkg/store"
)

type scriptedGenerator struct {
	responses []string
	err       error
}

func (g *scriptedGenerator) GenerateText(context.Context, string, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", fmt.Errorf("no scripted response")
	}
	response := g.responses[0]
	g.responses = g.responses[1:]
	return response, nil
}

type stubProvider struct {
	exchangeCalls int
	token         *oauth2.Token
}

func (p *stubProvider) Name() domain.Provider { return domain.ProviderGmail }
func (p *stubProvider) AuthURL(state string) string {
	return "https://accounts.example.com/consent?state=" + state
}
func (p *stubProvider) Exchange(context.Context, string) (*oauth2.Token, error) {
	p.exchangeCalls++
	return p.token, nil
}
func (p *stubProvider) Refresh(context.Context, string) (*oauth2.Token, error) {
	return p.token, nil
}

type stubMail struct{ messages []gmail.Message }

func (m *stubMail) ListRecentMessages(context.Context, string) ([]gmail.Message, error) {
	return m.messages, nil
}

type testServer struct {
	srv       *httptest.Server
	app       *app.App
	provider  *stubProvider
	mail      *stubMail
	generator *scriptedGenerator
	store     *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		provider:  &stubProvider{token: &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}},
		mail:      &stubMail{},
		generator: &scriptedGenerator{},
		store:     store.NewMemoryStore(),
	}
	sessions, err := store.NewJWTSessionStore("test-session-secret-0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("init sessions: %v", err)
	}
	application, err := app.New(app.Config{
		Store:        ts.store,
		AuthStates:   store.NewMemoryAuthStateStore(10 * time.Minute),
		Sessions:     sessions,
		MailProvider: ts.provider,
		Mail:         ts.mail,
		Generator:    ts.generator,
		Objects:      storage.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	ts.app = application
	handler := New(Config{App: application, AppOrigin: "https://app.example.com"})
	ts.srv = httptest.NewServer(handler.Router())
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func signUp(t *testing.T, ts *testServer) string {
	t.Helper()
	resp := ts.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "taxpayer@example.com", "password": "T4xfolio#Pass!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected session token")
	}
	return token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-Id"); got == "" {
		t.Error("expected request id header")
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/users/me", "/api/emails", "/api/documents"} {
		resp := ts.request(t, http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, resp.StatusCode)
		}
	}
}

func TestMailConnectAndCallback(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)

	resp := ts.request(t, http.MethodPost, "/api/mail/connect", token, map[string]string{
		"email": "taxpayer@gmail.com", "provider": "gmail",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	authURL, err := url.Parse(body["authUrl"])
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	state := authURL.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in auth url")
	}

	// Callback completes the flow and returns the popup page.
	resp = ts.request(t, http.MethodGet, "/api/auth/callback/gmail?code=auth-code&state="+state, "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	var page bytes.Buffer
	if _, err := page.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read page: %v", err)
	}
	if !strings.Contains(page.String(), "EMAIL_AUTH_SUCCESS") {
		t.Error("expected popup success message")
	}
	if !strings.Contains(page.String(), "https://app.example.com") {
		t.Error("expected postMessage targeted at the app origin")
	}
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "unsafe-inline") {
		t.Errorf("expected inline-script CSP on popup page, got %q", csp)
	}

	// Replay must fail and must not hit the token endpoint again.
	resp = ts.request(t, http.MethodGet, "/api/auth/callback/gmail?code=auth-code&state="+state, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 on replayed state, got %d", resp.StatusCode)
	}
	if ts.provider.exchangeCalls != 1 {
		t.Errorf("expected 1 exchange call, got %d", ts.provider.exchangeCalls)
	}
}

func TestCallbackMissingParams(t *testing.T) {
	ts := newTestServer(t)
	for _, query := range []string{"", "?code=x", "?state=y"} {
		resp := ts.request(t, http.MethodGet, "/api/auth/callback/gmail"+query, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", query, resp.StatusCode)
		}
	}
	if ts.provider.exchangeCalls != 0 {
		t.Errorf("expected no exchange calls, got %d", ts.provider.exchangeCalls)
	}
}

func TestMailFetchAndScan(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)
	me := decode[domain.User](t, ts.request(t, http.MethodGet, "/api/users/me", token, nil))
	if err := ts.store.UpsertToken(domain.TokenRecord{
		UserID: me.ID, Provider: domain.ProviderGmail, Email: "taxpayer@gmail.com",
		AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	ts.mail.messages = []gmail.Message{
		{ID: "m1", From: "payroll@employer.com", Subject: "W-2 available", Date: time.Now()},
	}

	resp := ts.request(t, http.MethodPost, "/api/mail/fetch", token, map[string]string{"email": "taxpayer@gmail.com", "provider": "gmail"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch status %d", resp.StatusCode)
	}
	fetched := decode[map[string]any](t, resp)
	if int(fetched["count"].(float64)) != 1 {
		t.Fatalf("expected 1 email, got %v", fetched["count"])
	}

	ts.generator.responses = []string{"```json\n" +
		`[{"id":"m1","type":"W2","sender":"payroll@employer.com","date":"2025-01-31","subject":"W-2 available","preview":""}]` +
		"\n```"}
	resp = ts.request(t, http.MethodPost, "/api/mail/scan", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan status %d", resp.StatusCode)
	}
	scanned := decode[map[string]any](t, resp)
	if int(scanned["count"].(float64)) != 1 {
		t.Fatalf("expected 1 document, got %v", scanned["count"])
	}

	// Malformed model output surfaces as an upstream failure.
	ts.generator.responses = []string{"sorry, no JSON today"}
	resp = ts.request(t, http.MethodPost, "/api/mail/scan", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 for malformed model output, got %d", resp.StatusCode)
	}
}

func TestFetchNotConnected(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)
	resp := ts.request(t, http.MethodPost, "/api/mail/fetch", token, map[string]string{"email": "other@gmail.com", "provider": "gmail"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 when mailbox not connected, got %d", resp.StatusCode)
	}
}

func TestFilingCheck(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)
	ts.generator.responses = []string{
		`{"mustFile":true,"filingRequirementReason":"Income above threshold","requiredFederalForms":["Form 1040"],"requiredStateForms":[],"taxRates":"22%","deadlines":"April 15, 2026","sourceExcerpt":"...","sourceUrl":"https://www.irs.gov"}`,
	}
	resp := ts.request(t, http.MethodPost, "/api/filing/check", token, map[string]any{
		"state": "CA", "age": 30, "income": 85000, "filingStatus": "single",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filing check status %d", resp.StatusCode)
	}
	requirement := decode[domain.FilingRequirement](t, resp)
	if !requirement.MustFile {
		t.Error("expected mustFile true")
	}

	resp = ts.request(t, http.MethodPost, "/api/filing/check", token, map[string]any{"age": 30, "income": 1, "filingStatus": "single"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing state, got %d", resp.StatusCode)
	}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestProcessDocumentsUpload(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)
	ts.generator.responses = []string{
		`{"documentType":"W2","issuer":"ACME Corp","taxYear":"2024","financialData":{"wages":"55000"}}`,
	}
	body, contentType := multipartBody(t, "files", "w2.txt", "text/plain", []byte("ACME Corp W-2 wages 55000"))
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/documents", body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	uploaded := decode[map[string]any](t, resp)
	if int(uploaded["count"].(float64)) != 1 {
		t.Fatalf("expected 1 result, got %v", uploaded["count"])
	}

	resp = ts.request(t, http.MethodGet, "/api/documents", token, nil)
	listed := decode[map[string]any](t, resp)
	if int(listed["count"].(float64)) != 1 {
		t.Fatalf("expected 1 stored document, got %v", listed["count"])
	}
	docID := listed["documents"].([]any)[0].(map[string]any)["id"].(string)

	resp = ts.request(t, http.MethodGet, "/api/documents/"+docID+"/download", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", resp.StatusCode)
	}
	download := decode[map[string]string](t, resp)
	if !strings.HasPrefix(download["url"], "memory://documents/") {
		t.Fatalf("unexpected download url %q", download["url"])
	}

	resp = ts.request(t, http.MethodGet, "/api/documents/no-such-doc/download", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown document, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.request(t, http.MethodDelete, "/api/documents/"+docID, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.request(t, http.MethodGet, "/api/documents", token, nil)
	listed = decode[map[string]any](t, resp)
	if int(listed["count"].(float64)) != 0 {
		t.Fatalf("expected empty document list, got %v", listed["count"])
	}
}

func TestAnalyzeContent(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)
	ts.generator.responses = []string{
		`{"documentType":"1099-INT","issuer":"First Bank","taxYear":"2024","financialData":{"interestIncome":"412.55"}}`,
	}
	resp := ts.request(t, http.MethodPost, "/api/documents/analyze", token, map[string]string{
		"content": "<p>Your 1099-INT from First Bank is ready.</p>",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status %d", resp.StatusCode)
	}
	document := decode[domain.TaxDocument](t, resp)
	if document.Issuer != "First Bank" {
		t.Errorf("unexpected document %+v", document)
	}

	resp = ts.request(t, http.MethodPost, "/api/documents/analyze", token, map[string]string{"content": " "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty content, got %d", resp.StatusCode)
	}
}

func TestEmailCRUD(t *testing.T) {
	ts := newTestServer(t)
	token := signUp(t, ts)
	me := decode[domain.User](t, ts.request(t, http.MethodGet, "/api/users/me", token, nil))
	if err := ts.store.SaveEmails(me.ID, []domain.Email{
		{ID: "m1", UserID: me.ID, Subject: "W-2", Date: time.Now()},
		{ID: "m2", UserID: me.ID, Subject: "lunch", Date: time.Now()},
	}); err != nil {
		t.Fatalf("seed emails: %v", err)
	}

	resp := ts.request(t, http.MethodPatch, "/api/emails/m1", token, map[string]bool{"starred": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d", resp.StatusCode)
	}
	updated := decode[domain.Email](t, resp)
	if !updated.Starred {
		t.Error("expected starred set")
	}

	resp = ts.request(t, http.MethodPatch, "/api/emails/unknown", token, map[string]bool{"read": true})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown email, got %d", resp.StatusCode)
	}

	resp = ts.request(t, http.MethodDelete, "/api/emails", token, map[string][]string{"ids": {"m2"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	resp = ts.request(t, http.MethodGet, "/api/emails", token, nil)
	listed := decode[map[string]any](t, resp)
	if int(listed["count"].(float64)) != 1 {
		t.Errorf("expected 1 email after delete, got %v", listed["count"])
	}
}
