package billingclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activeBody = `{
  "subscription": {
    "id": "sub-1",
    "vendorId": "vendor-1",
    "planId": "pro",
    "status": "active",
    "startDate": "2026-01-01T00:00:00Z",
    "currentPeriodEnd": "2026-02-01",
    "paymentStatus": "completed"
  },
  "plan": {"id": "pro", "name": "pro", "displayName": "Pro", "price": 399, "features": ["pos"]}
}`

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.RetryBackoff = time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return c
}

func TestClient_FetchActive(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(activeBody))
	})

	sub, err := c.Fetch(context.Background(), "vendor-1")

	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "/api/vendors/vendor-1/subscription", path)
	assert.Equal(t, "vendor-1", sub.TenantID)
	assert.True(t, sub.IsEntitled())
	require.NotNil(t, sub.Plan)
	assert.Equal(t, "399", sub.Plan.Price)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, 2026, sub.CurrentPeriodEnd.Year())
}

func TestClient_NoSubscription(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found":         func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		"no content":        func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		"null body":         func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("null")) },
		"null subscription": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"subscription":null}`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			sub, err := newTestClient(t, h).Fetch(context.Background(), "vendor-1")
			require.NoError(t, err)
			assert.Nil(t, sub)
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(activeBody))
	})

	sub, err := c.Fetch(context.Background(), "vendor-1")

	require.NoError(t, err)
	assert.True(t, sub.IsEntitled())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Fetch(context.Background(), "vendor-1")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Fetch(context.Background(), "vendor-1")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RejectsInvalidPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subscription":{"planId":"pro","paymentStatus":"completed"}}`))
	})

	_, err := c.Fetch(context.Background(), "vendor-1")

	assert.ErrorContains(t, err, "invalid subscription response")
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.Retries = 0
		cfg.FailureThreshold = 2
		cfg.BreakerTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), "vendor-1")
		require.Error(t, err)
	}

	_, err := c.Fetch(context.Background(), "vendor-1")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrCircuitOpen)
	assert.Equal(t, "open", c.BreakerState())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_OAuthClientCredentials(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"svc-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(activeBody))
	}, func(cfg *Config) {
		cfg.OAuthClientID = "vyora"
		cfg.OAuthClientSecret = "secret"
		cfg.OAuthTokenURL = tokenSrv.URL
	})

	_, err := c.Fetch(context.Background(), "vendor-1")

	require.NoError(t, err)
	assert.Equal(t, "Bearer svc-token", auth)
}

func TestClient_RequiresTenant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrTenantRequired)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}
