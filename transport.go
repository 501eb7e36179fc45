package mockwire

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TestingT is the slice of testing.TB the transport needs to report
// unmatched requests and to schedule automatic reversion. *testing.T
// and *testing.B satisfy it. Errorf is used rather than Fatalf so
// reports are safe from responder goroutines.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
	Cleanup(func())
}

// Option configures a Transport (and, through NewServer, a Server).
type Option func(*Transport)

// WithLogger routes transport logs and wire dumps to l instead of the
// default (silent unless MOCKWIRE_DEBUG or DEBUG is set).
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithReporter binds a test to the transport: unmatched requests are
// reported on tb as test errors in addition to failing the exchange.
func WithReporter(tb TestingT) Option {
	return func(t *Transport) { t.tb = tb }
}

// WithPassthrough forwards unmatched requests to next instead of
// failing them. Intercepting everything and failing loudly is the
// default; passthrough is strictly opt-in.
func WithPassthrough(next http.RoundTripper) Option {
	return func(t *Transport) { t.passthrough = next }
}

// WithRecorder substitutes a shared recorder for the transport's own.
func WithRecorder(rec *Recorder) Option {
	return func(t *Transport) {
		if rec != nil {
			t.rec = rec
		}
	}
}

// Transport answers HTTP requests from an owned handler stack: a base
// set plus any number of override layers, newest layer consulted
// first. It implements http.RoundTripper for client-side interception
// and http.Handler for socket-level serving, so the same handler
// semantics back both modes.
//
// Transports hold no global state; independent transports never
// interfere, which keeps parallel test runners isolated as long as
// each test owns its transport or only appends override layers scoped
// to itself.
type Transport struct {
	mu     sync.RWMutex
	base   *Set
	layers []*Set

	rec         *Recorder
	logger      zerolog.Logger
	tb          TestingT
	passthrough http.RoundTripper
}

// NewTransport builds a transport over base. The base set's stateful
// responders are rewound so every transport starts from call zero.
// A nil base behaves as an empty set.
func NewTransport(base *Set, opts ...Option) *Transport {
	if base == nil {
		base = NewSet()
	}
	t := &Transport{
		base:   base,
		rec:    NewRecorder(),
		logger: zerolog.Nop(),
	}
	if debugLoggingRequested() {
		t.logger = log.Logger
	}
	for _, opt := range opts {
		opt(t)
	}
	base.reset()
	return t
}

// Install builds a transport over the given handlers, binds it to tb
// for unmatched reporting, and schedules Reset for test cleanup. It is
// the usual entry point inside a test:
//
//	tr := mockwire.Install(t,
//	    mockwire.Get("/api/users").JSON(200, users),
//	)
//	client := tr.Client()
func Install(tb TestingT, handlers ...*Handler) *Transport {
	tr := NewTransport(NewSet(handlers...), WithReporter(tb))
	tb.Cleanup(tr.Reset)
	return tr
}

// Client returns an *http.Client whose requests are answered by the
// transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Recorder returns the transport's request recorder.
func (t *Transport) Recorder() *Recorder {
	return t.rec
}

// Use stacks a new override layer holding the given handlers on top
// of the base set and any earlier layers. The layer persists until
// Reset; tests should prefer Override, which reverts itself.
func (t *Transport) Use(handlers ...*Handler) {
	t.pushLayer(NewSet(handlers...))
}

// Override stacks an override layer like Use and registers a cleanup
// on tb that removes exactly that layer, rewinding its call state, so
// the override cannot leak past the test that installed it.
func (t *Transport) Override(tb TestingT, handlers ...*Handler) {
	layer := NewSet(handlers...)
	t.pushLayer(layer)
	tb.Cleanup(func() { t.removeLayer(layer) })
}

func (t *Transport) pushLayer(layer *Set) {
	layer.reset()
	t.mu.Lock()
	t.layers = append(t.layers, layer)
	t.mu.Unlock()
	overrideLayers.Inc()
}

func (t *Transport) removeLayer(layer *Set) {
	t.mu.Lock()
	for i, l := range t.layers {
		if l == layer {
			t.layers = append(t.layers[:i], t.layers[i+1:]...)
			overrideLayers.Dec()
			break
		}
	}
	t.mu.Unlock()
	layer.reset()
}

// Reset drops every override layer and rewinds the base set's call
// state, restoring the transport to its freshly installed shape.
func (t *Transport) Reset() {
	t.mu.Lock()
	dropped := len(t.layers)
	t.layers = nil
	base := t.base
	t.mu.Unlock()
	overrideLayers.Sub(float64(dropped))
	base.reset()
}

// match walks override layers newest-first, then the base set.
func (t *Transport) match(req *http.Request) (*Handler, map[string]string, bool) {
	t.mu.RLock()
	layers := make([]*Set, len(t.layers))
	copy(layers, t.layers)
	base := t.base
	t.mu.RUnlock()

	for i := len(layers) - 1; i >= 0; i-- {
		if h, vars, ok := layers[i].match(req); ok {
			return h, vars, true
		}
	}
	return base.match(req)
}

// RoundTrip implements http.RoundTripper. Matched requests are
// answered by their handler; a handler error is returned as-is so the
// caller experiences a transport failure with no response. Unmatched
// requests are recorded, reported on the bound test, and failed with
// an UnmatchedError unless a passthrough transport was configured.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	dumpRequest(t.logger, req)

	body, err := drainBody(req)
	if err != nil {
		return nil, fmt.Errorf("mockwire: read request body: %w", err)
	}

	h, vars, ok := t.match(req)
	if !ok {
		return t.roundTripUnmatched(req, body)
	}

	mreq := newRequest(req, body, vars)
	t.rec.record(newCapture(req, body, h.String(), true))

	start := time.Now()
	resp, rerr := h.invoke(req.Context(), mreq)
	responderDuration.WithLabelValues(h.String()).Observe(time.Since(start).Seconds())

	if rerr != nil {
		requestsTotal.WithLabelValues(req.Method, outcomeTransportError).Inc()
		t.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Str("route", h.String()).
			Err(rerr).
			Msg("simulated transport failure")
		return nil, rerr
	}

	requestsTotal.WithLabelValues(req.Method, outcomeMatched).Inc()
	httpResp := resp.httpResponse(req)
	dumpResponse(t.logger, httpResp)
	return httpResp, nil
}

func (t *Transport) roundTripUnmatched(req *http.Request, body []byte) (*http.Response, error) {
	t.rec.record(newCapture(req, body, "", false))

	if t.passthrough != nil {
		requestsTotal.WithLabelValues(req.Method, outcomePassthrough).Inc()
		t.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Msg("passing unmatched request through")
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
		}
		return t.passthrough.RoundTrip(req)
	}

	requestsTotal.WithLabelValues(req.Method, outcomeUnmatched).Inc()
	t.logger.Error().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("unmatched request")
	if t.tb != nil {
		t.tb.Helper()
		t.tb.Errorf("mockwire: unmatched request: %s %s", req.Method, req.URL)
	}
	return nil, &UnmatchedError{Method: req.Method, URL: req.URL.String()}
}

// ServeHTTP implements http.Handler over the same handler stack, for
// serving mocks on a real listener. Simulated transport failures abort
// the connection mid-response so clients still observe a failure below
// the HTTP layer; unmatched requests answer 501 and are reported the
// same way as in RoundTrip.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := drainBody(r)
	if err != nil {
		http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	h, vars, ok := t.match(r)
	if !ok {
		t.rec.record(newCapture(r, body, "", false))
		requestsTotal.WithLabelValues(r.Method, outcomeUnmatched).Inc()
		t.logger.Error().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Msg("unmatched request")
		if t.tb != nil {
			t.tb.Errorf("mockwire: unmatched request: %s %s", r.Method, r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotImplemented)
		fmt.Fprintf(w, `{"error":%q}`, (&UnmatchedError{Method: r.Method, URL: r.URL.String()}).Error())
		return
	}

	mreq := newRequest(r, body, vars)
	t.rec.record(newCapture(r, body, h.String(), true))

	start := time.Now()
	resp, rerr := h.invoke(r.Context(), mreq)
	responderDuration.WithLabelValues(h.String()).Observe(time.Since(start).Seconds())

	if rerr != nil {
		requestsTotal.WithLabelValues(r.Method, outcomeTransportError).Inc()
		if r.Context().Err() != nil {
			// Caller already gone; nothing to abort.
			return
		}
		t.logger.Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Str("route", h.String()).
			Err(rerr).
			Msg("aborting connection for simulated transport failure")
		panic(http.ErrAbortHandler)
	}

	requestsTotal.WithLabelValues(r.Method, outcomeMatched).Inc()
	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.status())
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}
