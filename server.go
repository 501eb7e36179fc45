package mockwire

import (
	"net/http"
	"net/http/httptest"
)

// Server serves a handler stack over a real loopback listener, for
// callers that need a URL rather than an injected RoundTripper
// (subprocesses, browsers, clients that build their own http.Client).
// It shares Transport's matching, override, and reset semantics.
type Server struct {
	tr *Transport
	ts *httptest.Server
}

// NewServer starts a loopback server answering from base. Callers
// must Close it, typically via t.Cleanup.
func NewServer(base *Set, opts ...Option) *Server {
	tr := NewTransport(base, opts...)
	return &Server{tr: tr, ts: httptest.NewServer(tr)}
}

// StartServer is the test-binding variant of NewServer: it reports
// unmatched requests on tb and schedules Close for test cleanup.
func StartServer(tb TestingT, handlers ...*Handler) *Server {
	s := NewServer(NewSet(handlers...), WithReporter(tb))
	tb.Cleanup(s.Close)
	return s
}

// URL returns the server's base URL, such as "http://127.0.0.1:53412".
func (s *Server) URL() string {
	return s.ts.URL
}

// Client returns an *http.Client configured for the server.
func (s *Server) Client() *http.Client {
	return s.ts.Client()
}

// Use stacks a persistent override layer. See Transport.Use.
func (s *Server) Use(handlers ...*Handler) {
	s.tr.Use(handlers...)
}

// Override stacks an override layer reverted on tb cleanup. See
// Transport.Override.
func (s *Server) Override(tb TestingT, handlers ...*Handler) {
	s.tr.Override(tb, handlers...)
}

// Reset drops override layers and rewinds base call state.
func (s *Server) Reset() {
	s.tr.Reset()
}

// Recorder returns the server's request recorder.
func (s *Server) Recorder() *Recorder {
	return s.tr.Recorder()
}

// Close shuts the listener down and blocks until outstanding requests
// finish.
func (s *Server) Close() {
	s.ts.Close()
}
