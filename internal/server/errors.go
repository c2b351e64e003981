package server

import (
	"errors"
	"net/http"

	"taxfolio/internal/app"
	"taxfolio/internal/util"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/auth"
	"taxfolio/pkg/gmail"
	"taxfolio/pkg/store"
)

// writeAppError maps application errors onto HTTP statuses. Client mistakes
// are 4xx with the error text; upstream trouble maps by its classified kind;
// everything else collapses to a generic 500 so internals never leak.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	logger := util.LoggerFromContext(r.Context())

	switch {
	case errors.Is(err, app.ErrMissingParameter),
		errors.Is(err, app.ErrInvalidState),
		errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrUnknownProvider),
		errors.Is(err, app.ErrMailboxNotConnected),
		errors.Is(err, app.ErrNoEmails),
		errors.Is(err, app.ErrNoFiles),
		errors.Is(err, app.ErrUnsupportedFileType),
		errors.Is(err, app.ErrDocumentNotArchived),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, store.ErrEmailNotFound),
		errors.Is(err, store.ErrDocumentNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, app.ErrUnauthenticated), errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, app.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, ai.ErrMalformedResponse):
		logger.Warn("model returned malformed response", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "model returned an unusable response, try again")
		return
	}

	var modelErr *ai.APIError
	if errors.As(err, &modelErr) {
		switch modelErr.Kind {
		case ai.KindRateLimited:
			writeError(w, http.StatusTooManyRequests, "model rate limit exceeded, try again later")
		case ai.KindUnauthorized:
			writeError(w, http.StatusUnauthorized, "model provider rejected our credentials")
		default:
			logger.Warn("model api failure", "path", r.URL.Path, "status", modelErr.StatusCode, "error", err)
			writeError(w, http.StatusBadGateway, "model provider is unavailable, try again later")
		}
		return
	}

	var gmailErr *gmail.APIError
	if errors.As(err, &gmailErr) {
		switch {
		case gmailErr.IsAuthError():
			writeError(w, http.StatusUnauthorized, "mailbox authorization failed, reconnect your email")
		case gmailErr.StatusCode == http.StatusTooManyRequests:
			writeError(w, http.StatusTooManyRequests, "mailbox rate limit exceeded, try again later")
		default:
			logger.Warn("gmail api failure", "path", r.URL.Path, "status", gmailErr.StatusCode, "error", err)
			writeError(w, http.StatusBadGateway, "mail provider is unavailable, try again later")
		}
		return
	}

	logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
