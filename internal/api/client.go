// Package api talks to the report service: it opens the streaming report
// endpoints and performs the small REST calls around them (terminate and
// history).
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Backland-Labs/reportrun/internal/history"
	"github.com/Backland-Labs/reportrun/internal/logger"
	"github.com/Backland-Labs/reportrun/internal/report"
)

const (
	// DefaultRequestTimeout bounds the non-streaming calls
	DefaultRequestTimeout = 10 * time.Second

	// DefaultRetries is how often an idempotent REST call is retried
	DefaultRetries = 2

	retryWait    = 100 * time.Millisecond
	retryMaxWait = 2 * time.Second
)

// Options configures a Client
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	Retries        int
	Logger         *logger.Logger
}

// Client is the report service client. Report streams go through a client
// without timeout or retries since their length is unbounded and a replay
// would start a second generation on the server.
type Client struct {
	stream *resty.Client
	rest   *resty.Client
	log    *logger.Logger
}

// NewClient creates a client for the service at opts.BaseURL
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	stream := newRestyClient(opts.BaseURL, log)

	rest := newRestyClient(opts.BaseURL, log).
		SetTimeout(opts.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(retryCondition)

	return &Client{stream: stream, rest: rest, log: log}, nil
}

func newRestyClient(baseURL string, log *logger.Logger) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetLogger(log).
		OnBeforeRequest(logger.RequestMiddleware(log)).
		OnAfterResponse(logger.ResponseMiddleware(log)).
		OnError(logger.ErrorHook(log))
}

// retryCondition retries network errors and server errors
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// OpenStream posts req to its report endpoint and returns the response body
// unread. The caller owns the body and must close it. Cancelling ctx aborts
// the request and any read in progress.
func (c *Client) OpenStream(ctx context.Context, req report.Request) (io.ReadCloser, error) {
	body, err := req.Body()
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	r := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := r.Post(req.Kind.Path())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Err: err}
	}

	raw := resp.RawBody()
	if !isSuccess(resp.StatusCode()) {
		if raw != nil {
			_ = raw.Close()
		}
		return nil, newStatusError(resp)
	}
	if raw == nil {
		return nil, &TransportError{Err: errors.New("response has no body")}
	}
	return raw, nil
}

// Terminate asks the service to shut down
func (c *Client) Terminate(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Post("/terminate")
	return c.check(ctx, resp, err)
}

// ListHistory returns the stored history entries in service order
func (c *Client) ListHistory(ctx context.Context) ([]history.Entry, error) {
	var entries []history.Entry
	resp, err := c.rest.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&entries).
		Get("/history")
	if err := c.check(ctx, resp, err); err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteHistory removes one entry
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("history id is required")
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete("/history/{id}")
	return c.check(ctx, resp, err)
}

// ClearHistory removes every entry
func (c *Client) ClearHistory(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Post("/history/clear")
	return c.check(ctx, resp, err)
}

func (c *Client) check(ctx context.Context, resp *resty.Response, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Err: err}
	}
	if !isSuccess(resp.StatusCode()) {
		return newStatusError(resp)
	}
	return nil
}
