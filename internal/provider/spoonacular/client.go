/*
client.go - Spoonacular REST API client

Implements catalog.Provider against https://api.spoonacular.com/.

Every call goes through the same path:

	context timeout -> rate limiter -> circuit breaker -> HTTP GET -> decode

The limiter paces outbound calls so a burst of recommendation requests
cannot exhaust the daily quota. The breaker stops calling an API that is
already failing; while it is open, calls fail immediately with
apperror.ErrExternalProvider and the recommendation engine degrades the
affected source to zero items.

API Reference: https://spoonacular.com/food-api/docs
*/
package spoonacular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.spoonacular.com/"

	// IngredientImagePrefix turns the bare file names the ingredient
	// endpoints return into absolute URLs.
	IngredientImagePrefix = "https://spoonacular.com/cdn/ingredients_500x500/"

	breakerName = "spoonacular"
)

// Ensure Client implements catalog.Provider
var _ catalog.Provider = (*Client)(nil)

// Config configures a Client. Zero values fall back to the defaults noted.
type Config struct {
	APIKey            string
	BaseURL           string        // default DefaultBaseURL
	Timeout           time.Duration // per call, default 10s
	RequestsPerSecond float64       // default 5
	Burst             int           // default 10

	// Breaker trips once at least BreakerMinRequests calls were made in the
	// current interval and BreakerFailureRatio of them failed.
	BreakerMinRequests  uint32        // default 10
	BreakerFailureRatio float64       // default 0.6
	BreakerInterval     time.Duration // default 1m
	BreakerTimeout      time.Duration // open -> half-open, default 30s
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 10
	}
	if c.BreakerFailureRatio <= 0 {
		c.BreakerFailureRatio = 0.6
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = time.Minute
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// Client talks to the Spoonacular API.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.code)
	}
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// An unknown id is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || isNotFound(err)
		},
	})

	return c
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// get performs one API call and decodes the JSON body into out. endpoint is
// the stable name used in logs and metrics; path may contain ids.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordProviderCall(endpoint, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		}
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &statusError{code: resp.StatusCode, body: msg}
	}
	return body, nil
}

// wrap converts a failed call to the error kinds callers switch on.
func wrap(endpoint, resource, id string, err error) error {
	if resource != "" && isNotFound(err) {
		return apperror.NotFound(resource, id)
	}
	return apperror.ExternalProvider(endpoint, err)
}
