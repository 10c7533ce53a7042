package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryCount = 3
	retryBackoff      = 500 * time.Millisecond
	retryJitter       = 100 * time.Millisecond

	rateLimitBackoff   = time.Second
	rateLimitAttempts  = 5
	rateLimitErrorCode = http.StatusTooManyRequests
)

// httpAPI is the shared HTTP transport for all REST-ish providers.
// Transport failures and 5xx are retried by heimdall, 429 is retried
// with a longer backoff on top of it.
type httpAPI struct {
	base    string
	headers map[string]string
	hc      *httpclient.Client
	limiter Limiter
	limKey  string
}

type httpOptions struct {
	timeout    time.Duration
	retryCount int
	headers    map[string]string
	limiter    Limiter
	limiterKey string
}

// Option configures an HTTP provider client.
type Option func(*httpOptions)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *httpOptions) { o.timeout = d }
}

// WithRetryCount overrides the transport retry count.
func WithRetryCount(n int) Option {
	return func(o *httpOptions) { o.retryCount = n }
}

// WithHeader adds a default header to every request.
func WithHeader(key, value string) Option {
	return func(o *httpOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// WithLimiter applies client-side rate limiting before each request,
// keyed under key.
func WithLimiter(l Limiter, key string) Option {
	return func(o *httpOptions) {
		o.limiter = l
		o.limiterKey = key
	}
}

func newHTTPAPI(base string, opts ...Option) *httpAPI {
	o := &httpOptions{
		timeout:    defaultTimeout,
		retryCount: defaultRetryCount,
	}
	for _, fn := range opts {
		fn(o)
	}

	hc := httpclient.NewClient(
		httpclient.WithHTTPTimeout(o.timeout),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(retryBackoff, retryJitter))),
		httpclient.WithRetryCount(o.retryCount),
	)

	return &httpAPI{
		base:    base,
		headers: o.headers,
		hc:      hc,
		limiter: o.limiter,
		limKey:  o.limiterKey,
	}
}

func (a *httpAPI) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return a.do(ctx, http.MethodGet, path, query, nil, out)
}

func (a *httpAPI) postJSON(ctx context.Context, path string, body any, out any) error {
	return a.do(ctx, http.MethodPost, path, nil, body, out)
}

func (a *httpAPI) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := a.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempt := func() error {
		if a.limiter != nil {
			if err := a.limiter.Allow(ctx, a.limKey); err != nil {
				return err
			}
		}

		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range a.headers {
			req.Header.Set(k, v)
		}

		resp, err := a.hc.Do(req)
		if err != nil {
			return &ResponseError{Code: 0, Message: err.Error(), Endpoint: endpoint}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ResponseError{Code: resp.StatusCode, Message: err.Error(), Endpoint: endpoint}
		}
		if resp.StatusCode >= 400 {
			return &ResponseError{
				Code:     resp.StatusCode,
				Message:  extractErrorMessage(raw),
				Endpoint: endpoint,
			}
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	}

	return retry.Do(
		attempt,
		retry.Context(ctx),
		retry.Attempts(rateLimitAttempts),
		retry.Delay(rateLimitBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var re *ResponseError
			return errors.As(err, &re) && re.Code == rateLimitErrorCode
		}),
	)
}

// extractErrorMessage pulls a human-readable message out of a provider
// error body, which differs between APIs.
func extractErrorMessage(raw []byte) string {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		if len(raw) > 256 {
			raw = raw[:256]
		}
		return string(raw)
	}
	for _, key := range []string{"error", "message", "detail", "description"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return string(raw)
}
