package mockwire

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Response describes the answer a responder produces. A zero
// StatusCode is served as 200.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) clone() *Response {
	out := &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       r.Body,
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	return out
}

func (r *Response) status() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

// httpResponse materializes the descriptor as an *http.Response bound
// to req, body re-readable from an in-memory reader.
func (r *Response) httpResponse(req *http.Request) *http.Response {
	status := r.status()
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
