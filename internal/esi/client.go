/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package esi is a client for the game's public API: status feed, mailbox,
// name resolution, corporation wallet journal and killmails.
package esi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/internal/request"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultRateLimitWait = 60 * time.Second

var (
	// ErrNotFound is returned when the API answers 404 for a resource.
	ErrNotFound = errors.New("esi: resource not found")

	// ErrRateLimited matches every *RateLimitError through errors.Is.
	ErrRateLimited = errors.New("esi: rate limited")
)

// RateLimitError is returned when the API refuses a call because of error
// limiting, throttling or mail spam protection.
type RateLimitError struct {
	StatusCode int
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("esi: rate limited (%d %s), retry after %s", e.StatusCode, e.Reason, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	StatusURL         string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// OptionsFromConfig maps the esi configuration section onto client options.
func OptionsFromConfig(cnf config.EsiConfig) Options {
	rps := 10.0
	if cnf.RequestsPerSecond != nil {
		rps = *cnf.RequestsPerSecond
	}
	return Options{
		BaseURL:           cnf.BaseURL,
		UserAgent:         cnf.UserAgent,
		Timeout:           time.Duration(cnf.TimeoutSeconds) * time.Second,
		RequestsPerSecond: rps,
		Burst:             cnf.Burst,
	}
}

// Client talks to the game API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	statusURL  string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter

	// newBackOff builds the retry policy for idempotent GETs.
	newBackOff func() backoff.BackOff
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	statusURL := opts.StatusURL
	if statusURL == "" {
		root := base
		if i := strings.LastIndex(base, "/"); i > len("https://") {
			root = base[:i]
		}
		statusURL = root + "/status.json?version=latest"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    base,
		statusURL:  statusURL,
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

// WithBackOff replaces the GET retry policy. Used by tests to avoid sleeping.
func (c *Client) WithBackOff(fn func() backoff.BackOff) *Client {
	c.newBackOff = fn
	return c
}

type call struct {
	method string
	url    string
	token  string
	body   interface{}
	out    interface{}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs the call. GETs are retried on transport errors and 5xx answers;
// everything else is attempted once.
func (c *Client) do(ctx context.Context, cl call) (*http.Response, error) {
	var resp *http.Response
	operation := func() error {
		var err error
		resp, err = c.once(ctx, cl)
		if err == nil {
			return nil
		}
		if cl.method != http.MethodGet || !retryable(err) {
			return backoff.Permanent(err)
		}
		logrus.WithFields(logrus.Fields{"url": cl.url, "error": err}).Debug("retrying esi request")
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	return resp, err
}

func (c *Client) once(ctx context.Context, cl call) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := request.ToJsonReq(cl.body)
		if err != nil {
			return nil, err
		}
		body = payload
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, body)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := request.Call(c.httpClient, req, cl.out)
	return resp, classify(err)
}

func retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *request.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

// classify turns upstream status errors into the package's typed errors.
func classify(err error) error {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	switch {
	case statusErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(statusErr.Body))
	case statusErr.StatusCode == 420 || statusErr.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			StatusCode: statusErr.StatusCode,
			Reason:     http.StatusText(statusErr.StatusCode),
			RetryAfter: retryAfter(statusErr.Header),
		}
	case strings.Contains(statusErr.Body, "MailStopSpamming"):
		return &RateLimitError{
			StatusCode: statusErr.StatusCode,
			Reason:     "MailStopSpamming",
			RetryAfter: retryAfter(statusErr.Header),
		}
	}
	return err
}

func retryAfter(h http.Header) time.Duration {
	for _, key := range []string{"Retry-After", "X-Esi-Error-Limit-Reset"} {
		if v := h.Get(key); v != "" {
			if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return defaultRateLimitWait
}

// RouteStatus is one entry of the API status feed.
type RouteStatus struct {
	Endpoint string   `json:"endpoint"`
	Method   string   `json:"method"`
	Route    string   `json:"route"`
	Status   string   `json:"status"`
	Tags     []string `json:"tags"`
}

// Status fetches the per-route health feed.
func (c *Client) Status(ctx context.Context) ([]RouteStatus, error) {
	var routes []RouteStatus
	_, err := c.do(ctx, call{method: http.MethodGet, url: c.statusURL, out: &routes})
	if err != nil {
		return nil, fmt.Errorf("fetching status feed: %w", err)
	}
	return routes, nil
}
