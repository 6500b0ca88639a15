package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// CorrelationHeader carries the correlation ID across services.
const CorrelationHeader = "X-Correlation-ID"

// correlation stores the inbound correlation ID, or a fresh one, in the
// request context and echoes it back.
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get(CorrelationHeader))
		if id := chimw.GetReqID(r.Context()); id != "" {
			ctx = observability.WithRequestID(ctx, id)
		}
		w.Header().Set(CorrelationHeader, observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestMetrics records request counts and latency per route pattern.
func requestMetrics(metrics observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.Counter("http_requests_total", 1,
				observability.T("method", r.Method),
				observability.T("path", path),
				observability.T("status", strconv.Itoa(status)),
			)
			metrics.Timing("http_request_duration", time.Since(start),
				observability.T("method", r.Method),
				observability.T("path", path),
			)
		})
	}
}

// tenant resolves the bearer token to a tenant, mounts its store and
// attaches its evaluator.
// Requests without a token carry no evaluator and see the safe default.
func (s *Server) tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		tenantID, err := s.issuer.Parse(raw)
		if err != nil {
			s.logger.Debug("rejected bearer token", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		// Every request mounts the store: a known tenant gets a background
		// refresh, a new one is warmed before the first answer.
		ctx := observability.WithTenantID(r.Context(), tenantID)
		openCtx, cancel := context.WithTimeout(ctx, s.openTimeout)
		_, err = s.registry.Open(openCtx, tenantID)
		cancel()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to open entitlement store")
			return
		}
		ctx = guard.WithEvaluator(ctx, s.registry.Evaluator(tenantID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}
