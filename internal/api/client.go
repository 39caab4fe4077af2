package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alextreichler/detailacademy/internal/metrics"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 5 * time.Minute

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() string
	Clear()
}

// StaticToken holds a single token in memory until the API rejects it.
type StaticToken struct {
	mu    sync.RWMutex
	token string
}

func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

func (s *StaticToken) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *StaticToken) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

type Options struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the academy REST API. Every service in the app goes
// through it so auth, timeouts and error normalization live in one place.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	log    *slog.Logger
}

func New(opts Options, tokens TokenSource, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if tokens == nil {
		tokens = NewStaticToken("")
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{tokens: tokens, log: log}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if token := c.tokens.Token(); token != "" {
			r.SetAuthToken(token)
		}
		return nil
	})
	c.http.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		if r.StatusCode() == http.StatusUnauthorized {
			// Guest flows carry on without a session, so only forget the token.
			c.log.Warn("API rejected bearer token, clearing it", "path", r.Request.URL)
			c.tokens.Clear()
		}
		return nil
	})
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// RequestOption tweaks a single outgoing request.
type RequestOption func(*resty.Request)

// WithIdempotencyKey lets the API recognize a replayed create or update.
func WithIdempotencyKey(key string) RequestOption {
	return func(r *resty.Request) {
		if key != "" {
			r.SetHeader("Idempotency-Key", key)
		}
	}
}

// Get decodes the "data" member of the response envelope into out.
// fallback is the message used when a failed response carries none.
func (c *Client) Get(ctx context.Context, path string, out any, fallback string, opts ...RequestOption) error {
	return c.do(ctx, resty.MethodGet, path, nil, out, fallback, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, fallback string, opts ...RequestOption) error {
	return c.do(ctx, resty.MethodPost, path, body, out, fallback, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, fallback string, opts ...RequestOption) error {
	return c.do(ctx, resty.MethodPut, path, body, out, fallback, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, fallback string, opts []RequestOption) error {
	op := method + " " + path
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	metrics.APIRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Error("API request failed", "op", op, "error", err)
		return &NetworkError{Op: op, Err: err}
	}

	if resp.IsError() {
		msg := extractMessage(resp.Body())
		if msg == "" {
			msg = fallback
		}
		c.log.Error("API returned an error", "op", op, "status", resp.StatusCode(), "message", msg)
		return &APIError{Op: op, Status: resp.StatusCode(), Message: msg}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", op, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}
