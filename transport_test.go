package mockwire_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mockwire/mockwire"
)

// reporterStub satisfies mockwire.TestingT for tests that expect
// unmatched requests without failing themselves.
type reporterStub struct {
	mu       sync.Mutex
	errors   []string
	cleanups []func()
}

func (r *reporterStub) Helper() {}

func (r *reporterStub) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *reporterStub) Cleanup(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, fn)
}

func (r *reporterStub) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func (r *reporterStub) runCleanups() {
	r.mu.Lock()
	cleanups := r.cleanups
	r.cleanups = nil
	r.mu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

func getStatus(t *testing.T, client *http.Client, url string) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestInstallServesFixedJSON(t *testing.T) {
	t.Parallel()

	users := []map[string]any{
		{"id": 1, "name": "Ada Lovelace"},
		{"id": 2, "name": "Grace Hopper"},
	}
	tr := mockwire.Install(t, mockwire.Get("/api/users").JSON(http.StatusOK, users))
	client := tr.Client()

	resp, err := client.Get("http://api.test/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	require.Equal(t, "Ada Lovelace", got[0]["name"])
	require.Equal(t, "Grace Hopper", got[1]["name"])
}

func TestHTTPErrorIsStillARoundTrip(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t, mockwire.Get("/api/users").JSON(http.StatusInternalServerError,
		map[string]string{"error": "internal server error"}))

	resp, err := tr.Client().Get("http://api.test/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"error":"internal server error"}`, string(body))
}

func TestTransportFailureHasNoResponse(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t, mockwire.Get("/api/users").NetworkError())

	resp, err := tr.Client().Get("http://api.test/api/users")
	require.Error(t, err)
	require.Nil(t, resp)
	require.ErrorIs(t, err, mockwire.ErrNetworkFailure)
}

func TestTransportFailureCarriesCustomError(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t, mockwire.Get("/api/users").TransportError(io.ErrUnexpectedEOF))

	_, err := tr.Client().Get("http://api.test/api/users")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUnmatchedRequestFailsLoudly(t *testing.T) {
	t.Parallel()

	stub := &reporterStub{}
	tr := mockwire.NewTransport(
		mockwire.NewSet(mockwire.Get("/api/users").Status(http.StatusOK)),
		mockwire.WithReporter(stub),
	)

	resp, err := tr.Client().Get("http://api.test/api/unknown")
	require.Error(t, err)
	require.Nil(t, resp)
	require.ErrorIs(t, err, mockwire.ErrUnmatched)
	require.Equal(t, 1, stub.errorCount())

	unmatched := tr.Recorder().Unmatched()
	require.Len(t, unmatched, 1)
	require.Equal(t, "http://api.test/api/unknown", unmatched[0].URL)
}

func TestMethodMismatchIsUnmatched(t *testing.T) {
	t.Parallel()

	stub := &reporterStub{}
	tr := mockwire.NewTransport(
		mockwire.NewSet(mockwire.Get("/api/users").Status(http.StatusOK)),
		mockwire.WithReporter(stub),
	)

	_, err := tr.Client().Post("http://api.test/api/users", "application/json", nil)
	require.ErrorIs(t, err, mockwire.ErrUnmatched)
	require.Equal(t, 1, stub.errorCount())
}

func TestOverrideRevertsWithSubtest(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t, mockwire.Get("/api/users").JSON(http.StatusOK, []string{"ada"}))
	client := tr.Client()

	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))

	t.Run("server error override", func(t *testing.T) {
		tr.Override(t, mockwire.Get("/api/users").JSON(http.StatusInternalServerError,
			map[string]string{"error": "boom"}))
		require.Equal(t, http.StatusInternalServerError, getStatus(t, client, "http://api.test/api/users"))
	})

	// The override layer is gone once its owning subtest finishes.
	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))
}

func TestOverrideLayersStackNewestFirst(t *testing.T) {
	t.Parallel()

	stub := &reporterStub{}
	tr := mockwire.NewTransport(
		mockwire.NewSet(mockwire.Get("/api/users").Text(http.StatusOK, "base")),
		mockwire.WithReporter(stub),
	)
	client := tr.Client()

	tr.Override(stub, mockwire.Get("/api/users").Text(http.StatusOK, "first"))
	tr.Override(stub, mockwire.Get("/api/users").Text(http.StatusOK, "second"))

	resp, err := client.Get("http://api.test/api/users")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "second", string(body))

	stub.runCleanups()

	resp, err = client.Get("http://api.test/api/users")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "base", string(body))
}

func TestResetDropsLayersAndRewindsState(t *testing.T) {
	t.Parallel()

	base := mockwire.NewSet(
		mockwire.Get("/api/users").Respond(mockwire.Sequence(
			mockwire.Status(http.StatusInternalServerError),
			mockwire.Status(http.StatusOK),
		)),
	)
	tr := mockwire.NewTransport(base)
	client := tr.Client()

	tr.Use(mockwire.Get("/api/extra").Status(http.StatusOK))

	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/extra"))
	require.Equal(t, http.StatusInternalServerError, getStatus(t, client, "http://api.test/api/users"))
	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))

	tr.Reset()

	// The layer is gone and the sequence restarts from its first step.
	_, err := tr.Client().Get("http://api.test/api/extra")
	require.ErrorIs(t, err, mockwire.ErrUnmatched)
	require.Equal(t, http.StatusInternalServerError, getStatus(t, client, "http://api.test/api/users"))
}

func TestOverrideRemovalRewindsSharedSequence(t *testing.T) {
	t.Parallel()

	// One handler value reused across subtests must start from its
	// first step in each, because layer removal rewinds its state.
	flaky := mockwire.Get("/api/users").Respond(mockwire.Sequence(
		mockwire.Status(http.StatusInternalServerError),
		mockwire.Status(http.StatusOK),
	))

	tr := mockwire.Install(t, mockwire.Get("/api/users").Status(http.StatusOK))
	client := tr.Client()

	for i := 0; i < 2; i++ {
		t.Run(fmt.Sprintf("attempt_%d", i), func(t *testing.T) {
			tr.Override(t, flaky)
			require.Equal(t, http.StatusInternalServerError, getStatus(t, client, "http://api.test/api/users"))
			require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))
		})
	}
}

func TestDelayPostponesResponse(t *testing.T) {
	t.Parallel()

	const delay = 120 * time.Millisecond
	tr := mockwire.Install(t, mockwire.Get("/api/users").Delay(delay).JSON(http.StatusOK, []any{}))

	start := time.Now()
	resp, err := tr.Client().Get("http://api.test/api/users")
	elapsed := time.Since(start)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.GreaterOrEqual(t, elapsed, delay)
}

func TestHangRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t, mockwire.Get("/api/slow").Hang())
	client := tr.Client()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.test/api/slow", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.Error(t, err)
	require.Nil(t, resp)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestObserveSeesRequestDetails(t *testing.T) {
	t.Parallel()

	var captured *mockwire.Request
	tr := mockwire.Install(t,
		mockwire.Post("/api/login").
			Observe(func(r *mockwire.Request) { captured = r }).
			JSON(http.StatusCreated, map[string]string{"token": "t-123"}),
	)

	payload := `{"email":"ada@example.com","password":"secret"}`
	resp, err := tr.Client().Post("http://api.test/api/login", "application/json",
		strings.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()

	require.NotNil(t, captured)
	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "/api/login", captured.URL.Path)
	require.Equal(t, "application/json", captured.Header.Get("Content-Type"))

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	require.NoError(t, captured.DecodeJSON(&creds))
	require.Equal(t, "ada@example.com", creds.Email)
}

func TestRecorderCapturesTraffic(t *testing.T) {
	t.Parallel()

	stub := &reporterStub{}
	tr := mockwire.NewTransport(
		mockwire.NewSet(mockwire.Post("/api/login").Status(http.StatusCreated)),
		mockwire.WithReporter(stub),
	)
	client := tr.Client()

	resp, err := client.Post("http://api.test/api/login", "application/json",
		strings.NewReader(`{"email":"ada@example.com"}`))
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Get("http://api.test/api/unknown")
	require.Error(t, err)

	rec := tr.Recorder()
	require.Equal(t, 2, rec.Len())

	all := rec.All()
	require.True(t, all[0].Matched)
	require.Equal(t, "POST /api/login", all[0].Route)
	require.NotEmpty(t, all[0].ID)
	require.JSONEq(t, `{"email":"ada@example.com"}`, string(all[0].Body))

	last, ok := rec.Last()
	require.True(t, ok)
	require.False(t, last.Matched)

	rec.Reset()
	require.Zero(t, rec.Len())
}

func TestPassthroughForwardsUnmatched(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "real backend")
	}))
	t.Cleanup(backend.Close)

	tr := mockwire.NewTransport(
		mockwire.NewSet(mockwire.Get("/api/users").Text(http.StatusOK, "mocked")),
		mockwire.WithPassthrough(backend.Client().Transport),
	)
	client := &http.Client{Transport: tr}

	resp, err := client.Get(backend.URL + "/api/users")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "mocked", string(body))

	resp, err = client.Get(backend.URL + "/other")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "real backend", string(body))
}

func TestParallelTestsStayIsolated(t *testing.T) {
	t.Parallel()

	run := func(name, want string) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tr := mockwire.Install(t, mockwire.Get("/api/users").Text(http.StatusOK, want))
			for i := 0; i < 20; i++ {
				resp, err := tr.Client().Get("http://api.test/api/users")
				require.NoError(t, err)
				body, err := io.ReadAll(resp.Body)
				resp.Body.Close()
				require.NoError(t, err)
				require.Equal(t, want, string(body))
			}
		})
	}
	run("first", "payload-one")
	run("second", "payload-two")
}

func TestConcurrentRequestsOnOneTransport(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	tr := mockwire.Install(t,
		mockwire.Get("/api/users").
			Observe(func(*mockwire.Request) { calls.Add(1) }).
			JSON(http.StatusOK, []any{}),
	)
	client := tr.Client()

	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get("http://api.test/api/users")
			if err != nil {
				failures.Add(1)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	require.EqualValues(t, 16, calls.Load())
	require.Equal(t, 16, tr.Recorder().Len())
}
