package mockwire

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capture is one intercepted request as seen by the transport,
// including requests that matched no handler.
type Capture struct {
	ID      string      `json:"id"`
	Time    time.Time   `json:"time"`
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Header  http.Header `json:"header,omitempty"`
	Body    []byte      `json:"body,omitempty"`
	Route   string      `json:"route,omitempty"`
	Matched bool        `json:"matched"`
}

func newCapture(req *http.Request, body []byte, route string, matched bool) Capture {
	return Capture{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Method:  req.Method,
		URL:     req.URL.String(),
		Header:  req.Header.Clone(),
		Body:    body,
		Route:   route,
		Matched: matched,
	}
}

// Recorder accumulates captures of every request a transport sees.
// It is safe for concurrent use; each Transport owns one unless a
// shared Recorder is injected via WithRecorder.
type Recorder struct {
	mu       sync.RWMutex
	captures []Capture
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(c Capture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, c)
}

// All returns a copy of every capture in arrival order.
func (r *Recorder) All() []Capture {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capture, len(r.captures))
	copy(out, r.captures)
	return out
}

// Last returns the most recent capture, or false when none exist.
func (r *Recorder) Last() (Capture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.captures) == 0 {
		return Capture{}, false
	}
	return r.captures[len(r.captures)-1], true
}

// Len reports the number of captures.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.captures)
}

// Unmatched returns only the captures that matched no handler.
func (r *Recorder) Unmatched() []Capture {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Capture
	for _, c := range r.captures {
		if !c.Matched {
			out = append(out, c)
		}
	}
	return out
}

// Reset discards all captures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = nil
}
