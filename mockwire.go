// Package mockwire provides a declarative mock HTTP backend for tests.
//
// A Set is an ordered collection of handlers, each pairing a route
// pattern (HTTP method plus path template) with a responder that
// produces a canned, delayed, stateful, or failing response. A
// Transport answers client requests from the active handler stack at
// the http.RoundTripper seam instead of touching the network; a Server
// serves the same stack over a real listener for callers that need a
// URL. Per-test overrides layer on top of the base set and are
// reverted automatically through testing cleanup hooks.
//
// Handlers match in registration order and the first match wins.
// Requests that match no handler never fall through to a real network:
// they are reported on the bound test, logged, and answered with an
// UnmatchedError.
package mockwire

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Handler pairs a compiled route pattern with the responder that
// answers matching requests. Build one with Get, Post, Any, or
// NewHandler and configure it by chaining; configuration must finish
// before the handler is installed into a transport or server.
type Handler struct {
	method  string
	pattern string
	host    string

	route *mux.Route

	responder Responder
	observers []func(*Request)
	header    http.Header
	delay     time.Duration
	hang      bool
}

// NewHandler compiles a route pattern for the given HTTP method.
// An empty method matches any method. Patterns are path templates in
// gorilla/mux syntax ("/api/users/{id}", "/files/{name:[a-z]+}") and
// must start with a slash, or absolute URLs ("https://api.example.com/v1/users")
// whose host part becomes a host constraint.
func NewHandler(method, pattern string) (*Handler, error) {
	h := &Handler{method: strings.ToUpper(strings.TrimSpace(method))}

	pat := strings.TrimSpace(pattern)
	if pat == "" {
		return nil, fmt.Errorf("empty route pattern")
	}
	if strings.Contains(pat, "://") {
		u, err := url.Parse(pat)
		if err != nil {
			return nil, fmt.Errorf("absolute route pattern %q: %w", pattern, err)
		}
		h.host = u.Host
		pat = u.Path
		if pat == "" {
			pat = "/"
		}
	}
	if !strings.HasPrefix(pat, "/") {
		return nil, fmt.Errorf("route pattern %q must start with a slash", pattern)
	}
	h.pattern = pat

	route := mux.NewRouter().NewRoute().Path(pat)
	if h.method != "" {
		route = route.Methods(h.method)
	}
	if err := route.GetError(); err != nil {
		return nil, fmt.Errorf("route pattern %q: %w", pattern, err)
	}
	h.route = route
	return h, nil
}

func mustHandler(h *Handler, err error) *Handler {
	if err != nil {
		panic("mockwire: " + err.Error())
	}
	return h
}

// Get returns a handler matching GET requests for pattern.
// It panics if the pattern does not compile, mirroring regexp.MustCompile.
func Get(pattern string) *Handler { return mustHandler(NewHandler(http.MethodGet, pattern)) }

// Post returns a handler matching POST requests for pattern.
func Post(pattern string) *Handler { return mustHandler(NewHandler(http.MethodPost, pattern)) }

// Put returns a handler matching PUT requests for pattern.
func Put(pattern string) *Handler { return mustHandler(NewHandler(http.MethodPut, pattern)) }

// Patch returns a handler matching PATCH requests for pattern.
func Patch(pattern string) *Handler { return mustHandler(NewHandler(http.MethodPatch, pattern)) }

// Delete returns a handler matching DELETE requests for pattern.
func Delete(pattern string) *Handler { return mustHandler(NewHandler(http.MethodDelete, pattern)) }

// Head returns a handler matching HEAD requests for pattern.
func Head(pattern string) *Handler { return mustHandler(NewHandler(http.MethodHead, pattern)) }

// Options returns a handler matching OPTIONS requests for pattern.
func Options(pattern string) *Handler { return mustHandler(NewHandler(http.MethodOptions, pattern)) }

// Any returns a handler matching every HTTP method for pattern.
func Any(pattern string) *Handler { return mustHandler(NewHandler("", pattern)) }

// Respond sets the responder invoked for matching requests. A handler
// without a responder answers 200 with an empty body.
func (h *Handler) Respond(r Responder) *Handler {
	h.responder = r
	return h
}

// JSON configures a fixed JSON response. The payload is marshaled once
// at configuration time; Respond panics on unmarshalable payloads.
func (h *Handler) JSON(status int, v any) *Handler { return h.Respond(JSON(status, v)) }

// Text configures a fixed text/plain response.
func (h *Handler) Text(status int, body string) *Handler { return h.Respond(Text(status, body)) }

// Status configures a fixed empty-body response with the given status.
func (h *Handler) Status(status int) *Handler { return h.Respond(Status(status)) }

// TransportError configures a simulated network failure: the caller
// receives err from its HTTP client with no response at all. A nil err
// defaults to ErrNetworkFailure.
func (h *Handler) TransportError(err error) *Handler { return h.Respond(TransportError(err)) }

// NetworkError configures a simulated network failure carrying
// ErrNetworkFailure.
func (h *Handler) NetworkError() *Handler { return h.Respond(TransportError(nil)) }

// Header adds a response header applied on top of whatever the
// responder returns.
func (h *Handler) Header(key, value string) *Handler {
	if h.header == nil {
		h.header = make(http.Header)
	}
	h.header.Add(key, value)
	return h
}

// Delay postpones the response by d. The wait respects the request
// context, so a canceled request surfaces the context error as a
// transport failure just like a real canceled dial.
func (h *Handler) Delay(d time.Duration) *Handler {
	h.delay = d
	return h
}

// Hang blocks the response until the request context is canceled,
// holding the caller in a pending state for loading-path verification.
func (h *Handler) Hang() *Handler {
	h.hang = true
	return h
}

// Observe registers fn to receive each matching request before the
// responder runs, for assertions on method, URL, headers, and body.
func (h *Handler) Observe(fn func(*Request)) *Handler {
	h.observers = append(h.observers, fn)
	return h
}

// ForHost constrains the handler to requests whose URL host equals
// host. A host without a port matches any port on that name.
func (h *Handler) ForHost(host string) *Handler {
	h.host = host
	return h
}

// String reports the route in "METHOD /path" form, with the host
// prefix when constrained.
func (h *Handler) String() string {
	method := h.method
	if method == "" {
		method = "ANY"
	}
	if h.host != "" {
		return method + " " + h.host + h.pattern
	}
	return method + " " + h.pattern
}

func (h *Handler) matches(req *http.Request) (map[string]string, bool) {
	if h.host != "" && !hostMatches(h.host, req) {
		return nil, false
	}
	var m mux.RouteMatch
	if !h.route.Match(req, &m) {
		return nil, false
	}
	return m.Vars, true
}

func hostMatches(want string, req *http.Request) bool {
	got := req.URL.Host
	if got == "" {
		got = req.Host
	}
	if strings.EqualFold(got, want) {
		return true
	}
	if !strings.Contains(want, ":") && strings.EqualFold(hostOnly(got), want) {
		return true
	}
	return false
}

func hostOnly(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

// invoke runs observers, applies delay or hang, and produces the
// response descriptor or the simulated transport failure.
func (h *Handler) invoke(ctx context.Context, req *Request) (*Response, error) {
	for _, fn := range h.observers {
		fn(req)
	}

	if h.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if h.delay > 0 {
		timer := time.NewTimer(h.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resp := &Response{StatusCode: http.StatusOK}
	if h.responder != nil {
		r, err := h.responder.Respond(ctx, req)
		if err != nil {
			return nil, err
		}
		if r != nil {
			resp = r
		}
	}
	if len(h.header) > 0 {
		resp = resp.clone()
		for key, values := range h.header {
			for _, v := range values {
				resp.Header.Add(key, v)
			}
		}
	}
	return resp, nil
}

func (h *Handler) resetState() {
	if r, ok := h.responder.(resettable); ok {
		r.resetState()
	}
}

// Set is an ordered handler collection. Matching walks handlers in
// registration order and the first match wins. Sets are safe for
// concurrent use.
type Set struct {
	mu       sync.RWMutex
	handlers []*Handler
}

// NewSet builds a set from handlers, preserving their order.
func NewSet(handlers ...*Handler) *Set {
	s := &Set{}
	return s.Append(handlers...)
}

// Append adds handlers at the end of the set and returns the set.
func (s *Set) Append(handlers ...*Handler) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range handlers {
		if h == nil {
			continue
		}
		s.handlers = append(s.handlers, h)
	}
	return s
}

// Len reports the number of handlers in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Handlers returns a copy of the set's handlers in registration order.
func (s *Set) Handlers() []*Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Handler, len(s.handlers))
	copy(out, s.handlers)
	return out
}

func (s *Set) match(req *http.Request) (*Handler, map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handlers {
		if vars, ok := h.matches(req); ok {
			return h, vars, true
		}
	}
	return nil, nil, false
}

// reset clears stateful responder counters (sequences, throttles) in
// every handler. Transports call it when a set is installed, when an
// override layer is removed, and on Reset.
func (s *Set) reset() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handlers {
		h.resetState()
	}
}
