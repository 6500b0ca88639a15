package guard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
)

type evaluatorCtxKey struct{}

// WithEvaluator attaches the tenant's evaluator to ctx.
func WithEvaluator(ctx context.Context, eval *application.Evaluator) context.Context {
	return context.WithValue(ctx, evaluatorCtxKey{}, eval)
}

// EvaluatorFromContext returns the evaluator attached to ctx. The result
// may be nil, which evaluates as a tenant without a subscription.
func EvaluatorFromContext(ctx context.Context) *application.Evaluator {
	eval, _ := ctx.Value(evaluatorCtxKey{}).(*application.Evaluator)
	return eval
}

// BlockedResponse is the body written for a denied request.
type BlockedResponse struct {
	Decision domain.Decision      `json:"decision"`
	Prompt   prompt.UpgradePrompt `json:"prompt"`
}

// Middleware guards an HTTP handler behind action. ActionNone means save.
//
// Entitled requests are handed to next untouched. Denied requests get
// 402 Payment Required with a BlockedResponse body and never reach next.
func Middleware(action domain.ActionKind, opts ...Option) func(http.Handler) http.Handler {
	action = defaultAction(action)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			eval := EvaluatorFromContext(r.Context())
			if eval.IsEntitled() {
				next.ServeHTTP(w, r)
				return
			}

			g := New(eval, opts...)
			d := g.check(r.Context(), action, domain.SurfaceHTTP)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			if err := json.NewEncoder(w).Encode(BlockedResponse{Decision: d, Prompt: g.Prompt(action)}); err != nil {
				g.logger.Warn("failed to write blocked response", "error", err)
			}
		})
	}
}

// Handler is an action run by the wrapping guard.
type Handler func(ctx context.Context) error

// Wrap returns h guarded by action. ActionNone means save.
//
// While the tenant is entitled the returned handler calls h directly.
// A denied call returns nil without running h.
func (g *Guard) Wrap(action domain.ActionKind, h Handler) Handler {
	action = defaultAction(action)
	return func(ctx context.Context) error {
		if g.Entitled() {
			return h(ctx)
		}
		if d := g.check(ctx, action, domain.SurfaceWrapper); !d.Allowed {
			return nil
		}
		return h(ctx)
	}
}

func defaultAction(action domain.ActionKind) domain.ActionKind {
	if action == domain.ActionNone {
		return domain.ActionSave
	}
	return action
}
