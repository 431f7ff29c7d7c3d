package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/library-admin/internal/model"
	"github.com/jwalitptl/library-admin/internal/session"
	"github.com/jwalitptl/library-admin/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
	"github.com/jwalitptl/library-admin/pkg/metrics"
)

const (
	HeaderPermission = "X-permission"
	HeaderRequestID  = "X-Request-ID"

	maxErrorBody = 64 << 10
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting
	RateLimit       float64
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Client talks to the Library API on behalf of one session.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    session.Session
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(cfg Config, sess session.Session, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		session:    sess,
		logger:     logger.Nop(),
		now:        time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "library-api",
		MaxFailures: cfg.BreakerFailures,
		Timeout:     cfg.BreakerTimeout,
		IsFailure:   isBreakerFailure,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", string(from), "to", string(to))
			if c.metrics != nil {
				if to == circuitbreaker.StateOpen {
					c.metrics.BreakerOpen.Set(1)
				} else {
					c.metrics.BreakerOpen.Set(0)
				}
			}
		},
	})
	return c, nil
}

// WithSession returns a client sharing transport, limiter and breaker but
// acting for another session.
func (c *Client) WithSession(sess session.Session) *Client {
	cp := *c
	cp.session = sess
	return &cp
}

func (c *Client) Session() session.Session {
	return c.session
}

// only outages count against the breaker, not 4xx answers
func isBreakerFailure(err error) bool {
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case apperrors.KindNetworkFailure:
		return true
	case apperrors.KindRemoteRejected:
		return apiErr.StatusCode >= 500
	}
	return false
}

type request struct {
	method string
	path   string
	// route labels metrics without ids
	route      string
	permission string
	// gated requests are refused locally when permission is empty
	gated bool
	query url.Values
	body  interface{}
}

// do performs req and decodes the data envelope into out (which may be nil).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	if err := c.session.Validate(c.now()); err != nil {
		return err
	}
	if req.gated && req.permission == "" {
		return apperrors.PermissionUnresolved("no permission code for " + req.route)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperrors.Canceled(err)
		}
	}

	start := time.Now()
	status := 0
	err := c.breaker.Execute(func() error {
		var execErr error
		status, execErr = c.roundTrip(ctx, req, out)
		return execErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = apperrors.NetworkFailure(err)
	}

	if c.metrics != nil {
		c.metrics.APIRequests.WithLabelValues(req.method, req.route, strconv.Itoa(status)).Inc()
		c.metrics.APILatency.WithLabelValues(req.method, req.route).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Debug("library api call failed",
			"method", req.method, "route", req.route, "status", status, "error", err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, req request, out interface{}) (int, error) {
	u := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.session.Token)
	if req.permission != "" {
		httpReq.Header.Set(HeaderPermission, req.permission)
	}
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, apperrors.Canceled(ctx.Err())
		}
		return 0, apperrors.NetworkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, apperrors.RemoteRejected(resp.StatusCode, extractMessage(raw))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, apperrors.NetworkFailure(fmt.Errorf("failed to read response: %w", err))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	env := model.Envelope[json.RawMessage]{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response data: %w", err)
	}
	return resp.StatusCode, nil
}

// extractMessage pulls a user-facing message out of an error body.
func extractMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	if len(body.Error) > 0 {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil {
			return strings.TrimSpace(nested.Message)
		}
	}
	return ""
}
