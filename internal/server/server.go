// Package server exposes the HTTP API.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"taxfolio/internal/app"
	"taxfolio/internal/ratelimit"
	"taxfolio/internal/util"
	"taxfolio/pkg/domain"
)

const defaultMaxUploadBytes = 20 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// AppOrigin is the browser origin of the frontend; it is the CORS
	// allow-origin and the postMessage target of the OAuth popup page.
	AppOrigin string

	// Limiter guards the model-invoking endpoints. Nil disables limiting.
	Limiter *ratelimit.FixedWindowLimiter

	// AuthLimiter guards signup and login per client IP. Nil disables it.
	AuthLimiter *ratelimit.FixedWindowLimiter

	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the tax assistant.
type Server struct {
	app         *app.App
	appOrigin   string
	limiter     *ratelimit.FixedWindowLimiter
	authLimiter *ratelimit.FixedWindowLimiter
	maxUpload   int64
	mux         *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		appOrigin:   strings.TrimRight(cfg.AppOrigin, "/"),
		limiter:     cfg.Limiter,
		authLimiter: cfg.AuthLimiter,
		maxUpload:   cfg.MaxUploadBytes,
		mux:         http.NewServeMux(),
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUploadBytes
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the shared middleware.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithCORS(s.appOrigin, handler)
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithRequestLog(handler)
	handler = util.WithRequestID(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/api/auth/signup", s.ipLimited(s.handleSignup))
	s.mux.HandleFunc("/api/auth/login", s.ipLimited(s.handleLogin))
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// mailbox OAuth
	s.mux.Handle("/api/mail/connect", s.authenticated(s.handleMailConnect))
	s.mux.HandleFunc("/api/auth/callback/gmail", s.handleOAuthCallback)

	// emails
	s.mux.Handle("/api/mail/fetch", s.authenticated(s.handleMailFetch))
	s.mux.Handle("/api/mail/scan", s.authenticated(s.limited(s.handleMailScan)))
	s.mux.Handle("/api/emails", s.authenticated(s.handleEmails))
	s.mux.Handle("/api/emails/", s.authenticated(s.handleEmailByID))

	// documents
	s.mux.Handle("/api/documents", s.authenticated(s.handleDocuments))
	s.mux.Handle("/api/documents/analyze", s.authenticated(s.limited(s.handleAnalyzeContent)))
	s.mux.Handle("/api/documents/", s.authenticated(s.handleDocumentByID))

	// assistants
	s.mux.Handle("/api/filing/check", s.authenticated(s.limited(s.handleFilingCheck)))
	s.mux.Handle("/api/expenses/classify", s.authenticated(s.limited(s.handleClassifyExpenses)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, app.ErrUnauthenticated.Error())
			return
		}
		next(w, r, user)
	})
}

// ipLimited applies the per-IP quota for credential endpoints.
func (s *Server) ipLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next(w, r)
	}
}

// limited applies the per-user quota for model-invoking endpoints.
func (s *Server) limited(next authHandler) authHandler {
	return func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !s.limiter.Allow(user.ID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// account handlers

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, app.ErrUnauthenticated.Error())
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// mailbox handlers

func (s *Server) handleMailConnect(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req mailboxRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	authURL, err := s.app.ConnectMailbox(user, req.Email, domain.Provider(req.Provider))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if _, err := s.app.HandleOAuthCallback(r.Context(), code, state); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	// The popup page needs its inline script; replace the restrictive
	// default CSP for this one response.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'unsafe-inline'")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html>
  <body>
    <script>
      if (window.opener) {
        window.opener.postMessage({ type: 'EMAIL_AUTH_SUCCESS' }, %q);
      }
      window.close();
    </script>
  </body>
</html>
`, s.appOrigin)
}

func (s *Server) handleMailFetch(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req mailboxRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	emails, err := s.app.FetchEmails(r.Context(), user, req.Email)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": emails, "count": len(emails)})
}

func (s *Server) handleMailScan(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	documents, err := s.app.ScanEmails(r.Context(), user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": documents, "count": len(documents)})
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		emails, err := s.app.ListEmails(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"emails": emails, "count": len(emails)})
	case http.MethodDelete:
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.DeleteEmails(user, req.IDs); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEmailByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/emails/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Read    *bool `json:"read"`
		Starred *bool `json:"starred"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Read == nil && req.Starred == nil {
		writeError(w, http.StatusBadRequest, "read or starred is required")
		return
	}
	email, err := s.app.UpdateEmail(user, id, req.Read, req.Starred)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, email)
}

// document handlers

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		documents, err := s.app.ListTaxDocuments(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": documents, "count": len(documents)})
	case http.MethodPost:
		s.limited(s.handleProcessDocuments)(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProcessDocuments(w http.ResponseWriter, r *http.Request, user domain.User) {
	uploads, err := s.readUploads(r, "files")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.app.ProcessDocuments(r.Context(), user, uploads)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(rest, "/download"):
		id := strings.TrimSuffix(rest, "/download")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		url, err := s.app.DocumentDownloadURL(r.Context(), user, id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})
	case r.Method == http.MethodDelete:
		if rest == "" || strings.Contains(rest, "/") {
			http.NotFound(w, r)
			return
		}
		if err := s.app.DeleteTaxDocument(r.Context(), user, rest); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAnalyzeContent(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	document, err := s.app.AnalyzeEmailContent(r.Context(), user, req.Content)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, document)
}

// assistant handlers

func (s *Server) handleFilingCheck(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var query app.FilingQuery
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	requirement, err := s.app.CheckFilingRequirements(r.Context(), query)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requirement)
}

func (s *Server) handleClassifyExpenses(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	uploads, err := s.readUploads(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.app.ClassifyExpenses(r.Context(), user, uploads[0])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readUploads reads named multipart files into memory, capped by the
// configured upload limit.
func (s *Server) readUploads(r *http.Request, field string) ([]app.DocumentUpload, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, fmt.Errorf("invalid multipart body")
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, app.ErrNoFiles
	}
	uploads := make([]app.DocumentUpload, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader) (app.DocumentUpload, error) {
	file, err := header.Open()
	if err != nil {
		return app.DocumentUpload{}, fmt.Errorf("open upload %s", header.Filename)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return app.DocumentUpload{}, fmt.Errorf("read upload %s", header.Filename)
	}
	return app.DocumentUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type mailboxRequest struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
