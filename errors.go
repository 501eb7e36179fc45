package mockwire

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatched reports a request no installed handler matched.
	// Unmatched requests never reach a real network; callers receive
	// an UnmatchedError wrapping this sentinel unless a passthrough
	// transport was configured.
	ErrUnmatched = errors.New("no handler matched request")

	// ErrNetworkFailure is the default error served by NetworkError
	// handlers: a transport-level failure with no HTTP response,
	// distinct from any status code.
	ErrNetworkFailure = errors.New("simulated network failure")
)

// UnmatchedError carries the method and URL of a request that fell
// through every installed handler. It unwraps to ErrUnmatched.
type UnmatchedError struct {
	Method string
	URL    string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrUnmatched, e.Method, e.URL)
}

func (e *UnmatchedError) Unwrap() error {
	return ErrUnmatched
}
