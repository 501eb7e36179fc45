// Package userapi is a small client for the user service's JSON API.
// It classifies failures into client, server, and transport errors,
// and retries the retryable ones with exponential backoff.
package userapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client calls the user service. Construct with New; the zero value is
// not usable.
type Client struct {
	rest        *resty.Client
	httpClient  *http.Client
	logger      zerolog.Logger
	timeout     time.Duration
	retryBudget time.Duration
}

// Option configures a Client during New.
type Option func(*Client) error

// WithHTTPClient substitutes the underlying *http.Client, which is how
// tests point the client at a mock transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithLogger routes client logs to l.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithRetryBudget bounds the total time spent retrying a retryable
// failure. Zero disables retries entirely.
func WithRetryBudget(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errors.New("retry budget must not be negative")
		}
		c.retryBudget = d
		return nil
	}
}

// New builds a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is required")
	}

	c := &Client{
		logger:      zerolog.Nop(),
		timeout:     10 * time.Second,
		retryBudget: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json")
	return c, nil
}

// ListUsers fetches the user roster. Server and transport failures are
// retried within the retry budget.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	op := func() error {
		resp, err := c.rest.R().
			SetContext(ctx).
			SetResult(&users).
			Get("/api/users")
		return c.classify(resp, err)
	}
	if err := c.retry(ctx, "list users", op); err != nil {
		return nil, err
	}
	return users, nil
}

// Login exchanges credentials for a session. Login is not retried:
// the call is not idempotent from the service's point of view, and a
// failed attempt should surface immediately.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	var session Session
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&session).
		Post("/api/login")
	if cerr := c.classify(resp, err); cerr != nil {
		return nil, unwrapPermanent(cerr)
	}
	return &session, nil
}

// DeleteUser removes a user by id. Deletes are idempotent, so
// retryable failures are retried like reads.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	op := func() error {
		resp, err := c.rest.R().
			SetContext(ctx).
			SetPathParam("id", strconv.Itoa(id)).
			Delete("/api/users/{id}")
		return c.classify(resp, err)
	}
	return c.retry(ctx, "delete user", op)
}

// classify folds a resty result into the error taxonomy: nil for
// success, a permanent error for non-retryable statuses, a plain
// *APIError for retryable ones.
func (c *Client) classify(resp *resty.Response, err error) error {
	if err != nil {
		return newTransportError(err)
	}
	if resp.IsError() {
		apiErr := newStatusError(resp.StatusCode(), resp.Body())
		if !apiErr.Retryable() {
			return backoff.Permanent(apiErr)
		}
		return apiErr
	}
	return nil
}

func (c *Client) retry(ctx context.Context, what string, op backoff.Operation) error {
	notify := func(err error, next time.Duration) {
		c.logger.Debug().
			Err(err).
			Dur("backoff", next).
			Str("call", what).
			Msg("retrying user service call")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify)
	return unwrapPermanent(err)
}

func (c *Client) newBackOff() backoff.BackOff {
	if c.retryBudget <= 0 {
		return &backoff.StopBackOff{}
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.RandomizationFactor = 0.2
	bo.Multiplier = 2.0
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = c.retryBudget
	return bo
}

// unwrapPermanent strips backoff's permanent marker so callers always
// see the underlying *APIError.
func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
