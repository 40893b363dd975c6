package errors

import (
	"errors"
	"net/http"
)

// Error kinds. The message of each sentinel doubles as the client-safe wire
// string; nothing else about a failure ever reaches the response body.
var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrUserExists           = errors.New("user_exists")
	ErrNoToken              = errors.New("no_token")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrInvalidRefresh       = errors.New("invalid_refresh")
	ErrRefreshExpired       = errors.New("refresh_expired")
	ErrRefreshRevoked       = errors.New("refresh_revoked")
	ErrInvalidState         = errors.New("invalid_state")
	ErrCsrfMismatch         = errors.New("csrf_mismatch")
	ErrGoogleExchangeFailed = errors.New("google_token_exchange_failed")
	ErrGoogleNoIDToken      = errors.New("google_no_id_token")
	ErrInvalidGoogleToken   = errors.New("invalid_google_token")
	ErrGoogleEmailRequired  = errors.New("google_email_required")
	ErrGoogleNotConfigured  = errors.New("google_oauth_not_configured")
	ErrUnsupportedGrant     = errors.New("unsupported_grant_type")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrNotFound             = errors.New("not_found")
)

// ErrorBody is the wire error envelope: {"error":{"message":"<kind>"}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind string.
type ErrorDetail struct {
	Message string `json:"message"`
}

// NewBody builds an error envelope for a kind string.
func NewBody(kind string) ErrorBody {
	return ErrorBody{Error: ErrorDetail{Message: kind}}
}

// HTTPError pairs an error kind with the status it maps to.
type HTTPError struct {
	StatusCode int
	Kind       string
}

func (e *HTTPError) Error() string {
	return e.Kind
}

// Body returns the wire envelope for this error.
func (e *HTTPError) Body() ErrorBody {
	return NewBody(e.Kind)
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, kind string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Kind: kind}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Unknown errors collapse
// to a generic 500; their detail stays server-side.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrNoToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidRefresh),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrRefreshRevoked),
		errors.Is(err, ErrInvalidGoogleToken):
		return NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserExists):
		return NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrCsrfMismatch),
		errors.Is(err, ErrGoogleExchangeFailed),
		errors.Is(err, ErrGoogleNoIDToken),
		errors.Is(err, ErrGoogleEmailRequired),
		errors.Is(err, ErrUnsupportedGrant),
		errors.Is(err, ErrInvalidRole):
		return NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrGoogleNotConfigured):
		return NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal_error")
	}
}
