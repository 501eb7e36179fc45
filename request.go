package mockwire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request is the observed view of an intercepted HTTP request handed
// to responders and observers. The body is fully drained before
// matching so it can be inspected any number of times.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	vars map[string]string
	raw  *http.Request
}

func newRequest(raw *http.Request, body []byte, vars map[string]string) *Request {
	return &Request{
		Method: raw.Method,
		URL:    raw.URL,
		Header: raw.Header,
		Body:   body,
		vars:   vars,
		raw:    raw,
	}
}

// Context returns the underlying request context. Delayed responders
// use it to abort waits when the caller gives up.
func (r *Request) Context() context.Context {
	if r.raw != nil {
		return r.raw.Context()
	}
	return context.Background()
}

// PathValue returns the value captured for a pattern variable, such as
// "id" in "/api/users/{id}". Missing variables yield "".
func (r *Request) PathValue(name string) string {
	return r.vars[name]
}

// Query returns the value of a URL query parameter.
func (r *Request) Query(name string) string {
	return r.URL.Query().Get(name)
}

// DecodeJSON unmarshals the request body into v.
func (r *Request) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("decode request body: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// HTTPRequest exposes the raw *http.Request for cases the observed
// view does not cover. Its body has already been consumed.
func (r *Request) HTTPRequest() *http.Request {
	return r.raw
}
