package mockwire_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mockwire/mockwire"
)

func TestJSONPanicsOnUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { mockwire.JSON(http.StatusOK, make(chan int)) })
}

func TestSequencePanicsWithoutSteps(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { mockwire.Sequence() })
}

func TestSequenceServesStepsThenClamps(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t,
		mockwire.Get("/api/users").Respond(mockwire.Sequence(
			mockwire.Status(http.StatusInternalServerError),
			mockwire.Status(http.StatusInternalServerError),
			mockwire.JSON(http.StatusOK, []string{"ada"}),
		)),
	)
	client := tr.Client()

	want := []int{
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusOK,
		// Past the last step the final responder repeats.
		http.StatusOK,
		http.StatusOK,
	}
	for i, status := range want {
		require.Equal(t, status, getStatus(t, client, "http://api.test/api/users"), "call %d", i)
	}
}

func TestStatusServesEmptyBody(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t, mockwire.Get("/api/users").Status(http.StatusNoContent))

	resp, err := tr.Client().Get("http://api.test/api/users")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, body)
}

func TestTextAndRawContentTypes(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t,
		mockwire.Get("/plain").Text(http.StatusOK, "hello"),
		mockwire.Get("/binary").Respond(mockwire.Raw(http.StatusOK, "application/octet-stream", []byte{0x1, 0x2})),
	)
	client := tr.Client()

	resp, err := client.Get("http://api.test/plain")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, "hello", string(body))

	resp, err = client.Get("http://api.test/binary")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, []byte{0x1, 0x2}, body)
}

func TestResponderFuncSeesRequest(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t,
		mockwire.Get("/api/users/{id}").Respond(mockwire.ResponderFunc(
			func(_ context.Context, req *mockwire.Request) (*mockwire.Response, error) {
				return &mockwire.Response{
					StatusCode: http.StatusOK,
					Body:       []byte(`{"id":"` + req.PathValue("id") + `"}`),
				}, nil
			},
		)),
	)

	resp, err := tr.Client().Get("http://api.test/api/users/7")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"7"}`, string(body))
}

func TestThrottleAnswers429BeyondBurst(t *testing.T) {
	t.Parallel()

	tr := mockwire.Install(t,
		mockwire.Get("/api/users").Respond(mockwire.Throttle(
			time.Hour, 2, mockwire.JSON(http.StatusOK, []any{}),
		)),
	)
	client := tr.Client()

	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))
	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))

	resp, err := client.Get("http://api.test/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Reset refills the bucket along with every other call counter.
	tr.Reset()
	require.Equal(t, http.StatusOK, getStatus(t, client, "http://api.test/api/users"))
}

func TestThrottlePanicsOnBadInterval(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { mockwire.Throttle(0, 1, mockwire.Status(http.StatusOK)) })
}
