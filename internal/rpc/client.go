package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/devblac/state-lens/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	retryBase      = 200 * time.Millisecond
	retryMax       = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	URL        string
	Timeout    time.Duration
	Retries    int
	RatePerSec float64
	Headers    map[string]string
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Client is a Soroban JSON-RPC client with retries and client-side rate limiting.
type Client struct {
	url     string
	http    *resty.Client
	limiter *TokenBucket
	retries int
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a client for opts.URL.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = defaultRetries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for k, v := range opts.Headers {
		hc.SetHeader(k, v)
	}

	var limiter *TokenBucket
	if opts.RatePerSec > 0 {
		limiter = NewTokenBucket(max(1, opts.RatePerSec), opts.RatePerSec)
	}

	return &Client{
		url:     opts.URL,
		http:    hc,
		limiter: limiter,
		retries: opts.Retries,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string { return c.url }

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *ErrorObject    `json:"error"`
}

// Call invokes method with params and decodes the result into out. Retryable
// failures (timeouts, network errors, 429/5xx, JSON-RPC server errors) are
// retried with exponential backoff; every failure is an *Error.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	c.metrics.RPCRequest(method)

	backoff := retry.WithMaxRetries(uint64(c.retries), retry.WithMaxDuration(retryMax, retry.NewExponential(retryBase)))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.RPCRetry()
			c.logger.Debug("retrying rpc call", "method", method, "attempt", attempt)
		}
		err := c.once(ctx, method, params, out)
		var rpcErr *Error
		if errors.As(err, &rpcErr) && rpcErr.Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Code: CodeUnknown, Message: err.Error()}
			err = rpcErr
		}
		c.metrics.RPCError(rpcErr.Code)
		return err
	}
	return nil
}

func (c *Client) once(ctx context.Context, method string, params any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.transportError(ctx, err)
	}
	req, err := BuildRequest(method, params, NextRequestID())
	if err != nil {
		return &Error{Code: CodeUnknown, Message: err.Error()}
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post(c.url)
	if err != nil {
		return c.transportError(ctx, err)
	}
	if resp.IsError() {
		status := resp.StatusCode()
		return &Error{
			Code:      strconv.Itoa(status),
			Message:   fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
			Details:   resp.String(),
			Status:    status,
			Retryable: ClassifyHTTPStatus(status) == ClassRetryable,
		}
	}

	var env response
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &Error{Code: CodeUnknown, Message: "malformed JSON-RPC response", Details: err.Error()}
	}
	if env.Error != nil {
		return &Error{
			Code:      strconv.FormatInt(env.Error.Code, 10),
			Message:   orDefault(env.Error.Message, "JSON-RPC Error"),
			Details:   string(env.Error.Data),
			Retryable: retryableCode(env.Error.Code),
		}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &Error{Code: CodeUnknown, Message: "decode " + method + " result", Details: err.Error()}
	}
	return nil
}

// transportError classifies a failure that produced no HTTP response. A
// caller cancellation is final; timeouts and network faults may be retried.
func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Code: CodeUnknown, Message: "request cancelled", Details: err.Error()}
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{
			Code:      CodeTimeout,
			Message:   "Request timeout",
			Details:   fmt.Sprintf("Request timed out after %s", c.timeout),
			Timeout:   true,
			Retryable: ctx.Err() == nil,
		}
	}
	return &Error{Code: CodeNetworkError, Message: "Network error", Details: err.Error(), Retryable: true}
}
