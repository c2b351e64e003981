package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrUserDisabled is returned when an account is disabled.
	// Handlers should generally NOT expose this to clients to avoid account enumeration.
	ErrUserDisabled = errors.New("user disabled")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	// ErrMissingParameter is returned when a required request parameter is
	// absent or blank.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidState is returned when an OAuth callback carries a state that
	// is unknown, expired, or already consumed.
	ErrInvalidState = errors.New("invalid or expired authentication state")

	// ErrUnauthenticated is returned when no valid session accompanies a
	// protected operation.
	ErrUnauthenticated = errors.New("user not authenticated")

	// ErrNotConfigured is returned when the model provider is not configured.
	ErrNotConfigured = errors.New("model provider is not configured")

	// ErrUnknownProvider is returned for mail providers the service does not
	// support.
	ErrUnknownProvider = errors.New("unknown mail provider")

	// ErrMailboxNotConnected is returned when no stored credentials exist for
	// the requested mailbox.
	ErrMailboxNotConnected = errors.New("email not connected, connect your email first")

	// ErrNoEmails is returned when a scan is requested before any emails were
	// fetched.
	ErrNoEmails = errors.New("no emails found, connect your email first")

	// ErrNoFiles is returned when a document upload carries no files.
	ErrNoFiles = errors.New("no files uploaded")

	// ErrUnsupportedFileType is returned for uploads the parsers cannot read.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrDocumentNotArchived is returned when a document has no stored
	// original to download.
	ErrDocumentNotArchived = errors.New("document has no archived original")
)
