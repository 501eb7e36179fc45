package userapi

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind separates the three failure families a caller handles
// differently: its own bad request, a broken service, and no HTTP
// exchange at all.
type ErrorKind string

const (
	// ErrorKindClient covers 4xx responses; the request itself is at
	// fault and retrying it unchanged will not help.
	ErrorKindClient ErrorKind = "client"

	// ErrorKindServer covers 5xx responses; the service failed and a
	// retry may succeed.
	ErrorKindServer ErrorKind = "server"

	// ErrorKindTransport covers failures below HTTP: refused
	// connections, timeouts, dropped sockets. No response exists, so
	// there is no status code to inspect.
	ErrorKindTransport ErrorKind = "transport"
)

// APIError is the classified failure of one user-service call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // 0 for transport failures
	Body       string
	Underlying error
}

func (e *APIError) Error() string {
	if e.Kind == ErrorKindTransport {
		return fmt.Sprintf("user service: transport failure: %v", e.Underlying)
	}
	return fmt.Sprintf("user service: %s error: status %d: %s", e.Kind, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Underlying
}

// Retryable reports whether repeating the call can reasonably
// succeed: transport failures, server errors, and the two 4xx codes
// that signal transient pressure.
func (e *APIError) Retryable() bool {
	if e.Kind == ErrorKindTransport || e.Kind == ErrorKindServer {
		return true
	}
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

func newStatusError(status int, body []byte) *APIError {
	kind := ErrorKindClient
	if status >= 500 {
		kind = ErrorKindServer
	}
	return &APIError{
		Kind:       kind,
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func newTransportError(err error) *APIError {
	return &APIError{Kind: ErrorKindTransport, Underlying: err}
}
