// Package api implements the HTTP client for the dividend tracker backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"divtrack/internal/cache"
	"divtrack/internal/errors"
	"divtrack/internal/logging"
	"divtrack/internal/security"
)

// RequestIDHeader carries a per-request UUID to the backend.
const RequestIDHeader = "X-Request-ID"

// CacheTTLs controls how long market data responses are cached.
type CacheTTLs struct {
	Quote     time.Duration
	History   time.Duration
	Dividends time.Duration
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimitRPS    float64
	RateBurst       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Cache           cache.Cache
	CacheTTLs       CacheTTLs
	HTTPClient      *http.Client
	Registerer      prometheus.Registerer
	Logger          zerolog.Logger
}

// Client talks to every remote endpoint the tracker uses. It is safe for
// concurrent use.
type Client struct {
	baseURL   string
	healthURL string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	cache     cache.Cache
	ttls      CacheTTLs
	metrics   *metrics
	logger    zerolog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{
		Name:    "tracker-api",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only transport-level failures count against the backend; a caller
		// abandoning its own request does not.
		IsSuccessful: func(err error) bool {
			var netErr *errors.NetworkError
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !errors.As(err, &netErr)
		},
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		baseURL:   base,
		healthURL: strings.TrimSuffix(base, "/api") + "/health",
		http:      httpClient,
		limiter:   limiter,
		breaker:   gobreaker.NewCircuitBreaker(st),
		cache:     opts.Cache,
		ttls:      opts.CacheTTLs,
		metrics:   newMetrics(opts.Registerer),
		logger:    logging.WithComponent(opts.Logger, "api"),
	}
}

// request describes one remote call.
type request struct {
	method   string
	endpoint string // metric/log label, e.g. "price"
	path     string // relative to base URL
	query    url.Values
	body     interface{}
	absolute string // overrides base URL + path
}

// do executes req and decodes a 2xx JSON body into out. Non-2xx responses
// and transport failures are mapped onto the error taxonomy.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	start := time.Now()
	requestID := uuid.NewString()
	status := 0

	_, err := c.breaker.Execute(func() (interface{}, error) {
		var err error
		status, err = c.roundTrip(ctx, req, requestID, out)
		return nil, err
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		err = errors.NewNetworkError(req.method, req.endpoint, errors.Wrap(errors.ErrRemoteUnavailable, err.Error()))
	}

	c.metrics.observe(req.endpoint, err, time.Since(start))
	logging.LogAPICall(c.logger, req.method, req.endpoint, requestID, status, time.Since(start), err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, req request, requestID string, out interface{}) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, errors.NewNetworkError(req.method, req.endpoint, err)
		}
	}

	target := req.absolute
	if target == "" {
		target = c.baseURL + "/" + req.path
	}
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("encoding %s request: %w", req.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("building %s request: %w", req.endpoint, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", errors.ErrTimeout, ctxErr)
		}
		return 0, errors.NewNetworkError(req.method, req.endpoint, redacted{err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, errors.NewNetworkError(req.method, req.endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, statusError(req, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding %s response: %w", req.endpoint, err)
	}
	return resp.StatusCode, nil
}

// redacted hides tokens that net/http echoes back in URL errors.
type redacted struct{ err error }

func (r redacted) Error() string { return security.RedactSecrets(r.err.Error()) }
func (r redacted) Unwrap() error { return r.err }

// statusError maps an HTTP error status onto the error taxonomy.
func statusError(req request, status int, body []byte) error {
	detail := errorDetail(body)
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewAuthError(req.endpoint, detail, errors.ErrTokenRejected)
	case status >= 500:
		return errors.NewNetworkError(req.method, req.endpoint, fmt.Errorf("status %d: %s", status, detail))
	default:
		return errors.NewValidationError(req.endpoint, status, detail)
	}
}

// errorDetail extracts FastAPI-style {"detail": ...} or {"error": ...} text.
func errorDetail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return strings.TrimSpace(string(body))
	}
	if e.Error != "" {
		return e.Error
	}
	if len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	return ""
}

// Health reports the backend health endpoint.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "health", absolute: c.healthURL}, &out)
	return out, err
}
