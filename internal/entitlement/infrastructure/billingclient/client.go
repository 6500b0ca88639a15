// Package billingclient fetches tenant subscriptions from the billing API.
package billingclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/pkg/observability"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultSubscriptionPath is the billing route; {tenantId} is substituted.
const DefaultSubscriptionPath = "/api/vendors/{tenantId}/subscription"

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("billing circuit breaker is open")

// Config configures the client.
type Config struct {
	BaseURL          string
	SubscriptionPath string
	Timeout          time.Duration

	// Retries is the number of extra attempts after a failed first call.
	Retries      int
	RetryBackoff time.Duration

	FailureThreshold uint32
	BreakerTimeout   time.Duration

	// OAuth client credentials; all three must be set to enable auth.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthScopes       []string
}

// DefaultConfig returns sensible defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		SubscriptionPath: DefaultSubscriptionPath,
		Timeout:          5 * time.Second,
		Retries:          2,
		RetryBackoff:     200 * time.Millisecond,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// Client implements domain.SubscriptionSource over HTTP.
type Client struct {
	cfg      Config
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*domain.Subscription]
	validate *validator.Validate
	logger   *slog.Logger
	metrics  observability.Metrics
}

// New creates a billing client.
func New(cfg Config, logger *slog.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("billing base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid billing base url: %w", err)
	}
	if cfg.SubscriptionPath == "" {
		cfg.SubscriptionPath = DefaultSubscriptionPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	c := &Client{
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
	c.http = c.httpClient()
	c.breaker = gobreaker.NewCircuitBreaker[*domain.Subscription](gobreaker.Settings{
		Name:        "billing",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.Counter(observability.MetricBreakerTransitions, 1, observability.T("state", to.String()))
		},
	})
	return c, nil
}

func (c *Client) httpClient() *http.Client {
	base := &http.Client{Timeout: c.cfg.Timeout}
	if c.cfg.OAuthClientID == "" || c.cfg.OAuthClientSecret == "" || c.cfg.OAuthTokenURL == "" {
		return base
	}
	cc := clientcredentials.Config{
		ClientID:     c.cfg.OAuthClientID,
		ClientSecret: c.cfg.OAuthClientSecret,
		TokenURL:     c.cfg.OAuthTokenURL,
		Scopes:       c.cfg.OAuthScopes,
	}
	// Token requests use the same timeout as API calls.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &oauthTransport{
			base:   http.DefaultTransport,
			source: cc.TokenSource(tokenCtx),
		},
	}
}

// BreakerState reports the circuit breaker state, e.g. "closed".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Ping fails while the circuit breaker is open.
func (c *Client) Ping(ctx context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// Fetch implements domain.SubscriptionSource. A tenant without a
// subscription yields nil, nil.
func (c *Client) Fetch(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}
	sub, err := c.breaker.Execute(func() (*domain.Subscription, error) {
		return c.fetchWithRetry(ctx, tenantID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return sub, err
}

func (c *Client) fetchWithRetry(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying subscription fetch", "tenant_id", tenantID, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}

		sw := observability.StartStopwatch(c.metrics, observability.OperationMetrics, observability.T("operation", "billing.fetch"))
		sub, err := c.fetchOnce(ctx, tenantID)
		sw.Stop(err)
		if err == nil {
			return sub, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") +
		strings.ReplaceAll(c.cfg.SubscriptionPath, "{tenantId}", url.PathEscape(tenantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, responseError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return c.decode(tenantID, body)
}

func (c *Client) decode(tenantID string, body []byte) (*domain.Subscription, error) {
	var payload subscriptionResponse
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode subscription response: %w", err)
	}
	if payload.Subscription == nil {
		return nil, nil
	}
	if err := c.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid subscription response: %w", err)
	}
	return payload.toDomain(tenantID), nil
}

// StatusError is a non-2xx billing response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("billing API failed: status=%d body=%s", e.Code, e.Body)
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}

type oauthTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	token.SetAuthHeader(req)
	return t.base.RoundTrip(req)
}

var _ domain.SubscriptionSource = (*Client)(nil)
