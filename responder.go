package mockwire

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Responder produces the response for a matched request, or an error
// to simulate a transport-level failure in which the caller receives
// no HTTP response at all.
type Responder interface {
	Respond(ctx context.Context, req *Request) (*Response, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, req *Request) (*Response, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// resettable marks responders carrying mutable call state. Their state
// is cleared when the owning set is installed, when its override layer
// is removed, and on Transport.Reset.
type resettable interface {
	resetState()
}

// JSON returns a responder serving v as an application/json body with
// the given status. The payload is marshaled once up front; JSON
// panics if it cannot be marshaled, mirroring regexp.MustCompile.
func JSON(status int, v any) Responder {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mockwire: JSON responder payload: %v", err))
	}
	return ResponderFunc(func(context.Context, *Request) (*Response, error) {
		return &Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       body,
		}, nil
	})
}

// Text returns a responder serving a text/plain body.
func Text(status int, body string) Responder {
	return Raw(status, "text/plain; charset=utf-8", []byte(body))
}

// Raw returns a responder serving body verbatim under contentType.
func Raw(status int, contentType string, body []byte) Responder {
	return ResponderFunc(func(context.Context, *Request) (*Response, error) {
		header := make(http.Header)
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}
		return &Response{StatusCode: status, Header: header, Body: body}, nil
	})
}

// Status returns a responder serving an empty body with the given
// status code.
func Status(status int) Responder {
	return ResponderFunc(func(context.Context, *Request) (*Response, error) {
		return &Response{StatusCode: status}, nil
	})
}

// TransportError returns a responder that fails the exchange before
// any HTTP response exists, the way a refused connection or dropped
// socket would. A nil err defaults to ErrNetworkFailure.
func TransportError(err error) Responder {
	if err == nil {
		err = ErrNetworkFailure
	}
	return ResponderFunc(func(context.Context, *Request) (*Response, error) {
		return nil, err
	})
}

// Sequence returns a responder that serves steps in order, one per
// call, then repeats the final step for every call after the last.
// The position is explicit per-sequence state: it starts at the first
// step when the owning set is installed and rewinds whenever that
// set's reset point fires. Sharing one Sequence value between sets
// shares its position.
func Sequence(steps ...Responder) Responder {
	if len(steps) == 0 {
		panic("mockwire: Sequence requires at least one step")
	}
	return &sequence{steps: steps}
}

type sequence struct {
	mu    sync.Mutex
	next  int
	steps []Responder
}

func (s *sequence) Respond(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	i := s.next
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.next++
	s.mu.Unlock()
	return s.steps[i].Respond(ctx, req)
}

func (s *sequence) resetState() {
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
	for _, step := range s.steps {
		if r, ok := step.(resettable); ok {
			r.resetState()
		}
	}
}

// Throttle wraps next with a token-bucket rate limit: calls beyond
// burst within interval are answered 429 with a Retry-After header
// instead of reaching next. The bucket refills like the set's other
// call state, at the owning set's reset points.
func Throttle(interval time.Duration, burst int, next Responder) Responder {
	if interval <= 0 {
		panic("mockwire: Throttle interval must be positive")
	}
	if burst < 1 {
		burst = 1
	}
	if next == nil {
		next = Status(http.StatusOK)
	}
	t := &throttle{interval: interval, burst: burst, next: next}
	t.limiter = rate.NewLimiter(rate.Every(interval), burst)
	return t
}

type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	limiter  *rate.Limiter
	next     Responder
}

func (t *throttle) Respond(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	limiter := t.limiter
	t.mu.Unlock()

	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		seconds := int(math.Ceil(delay.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		return &Response{
			StatusCode: http.StatusTooManyRequests,
			Header: http.Header{
				"Content-Type": []string{"application/json"},
				"Retry-After":  []string{strconv.Itoa(seconds)},
			},
			Body: []byte(`{"error":"rate limit exceeded"}`),
		}, nil
	}
	return t.next.Respond(ctx, req)
}

func (t *throttle) resetState() {
	t.mu.Lock()
	t.limiter = rate.NewLimiter(rate.Every(t.interval), t.burst)
	t.mu.Unlock()
	if r, ok := t.next.(resettable); ok {
		r.resetState()
	}
}
