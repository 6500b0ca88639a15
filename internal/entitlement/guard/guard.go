// Package guard gates Pro-only actions at their call sites.
//
// There are three integration shapes, all backed by the same Evaluator:
// Middleware and Wrap intercept a handler, Button is a self-checking
// control, and Do/Go guard a callback imperatively. A denial is never an
// error; it opens the upgrade prompt and is reported as a value.
package guard

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// Guard checks actions against an evaluator and handles denials.
type Guard struct {
	eval      *application.Evaluator
	recorder  application.DenialRecorder
	onBlocked func(message string)
	session   *Session
	promptCfg prompt.Config
	metrics   observability.Metrics
	logger    *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithRecorder sends every denial to r.
func WithRecorder(r application.DenialRecorder) Option {
	return func(g *Guard) { g.recorder = r }
}

// WithOnBlocked registers a callback invoked with the denial message.
func WithOnBlocked(fn func(message string)) Option {
	return func(g *Guard) { g.onBlocked = fn }
}

// WithSession makes denials open s.
func WithSession(s *Session) Option {
	return func(g *Guard) { g.session = s }
}

// WithPromptConfig sets the offer used when building prompts.
func WithPromptConfig(cfg prompt.Config) Option {
	return func(g *Guard) { g.promptCfg = cfg }
}

// WithMetrics counts evaluations.
func WithMetrics(m observability.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a guard. A nil evaluator denies everything.
func New(eval *application.Evaluator, opts ...Option) *Guard {
	g := &Guard{
		eval:      eval,
		promptCfg: prompt.DefaultConfig(),
		metrics:   observability.NoopMetrics{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluator returns the evaluator the guard consults.
func (g *Guard) Evaluator() *application.Evaluator {
	if g == nil {
		return nil
	}
	return g.eval
}

// Session returns the attached session, if any.
func (g *Guard) Session() *Session {
	if g == nil {
		return nil
	}
	return g.session
}

// Entitled reports whether the tenant is currently entitled.
func (g *Guard) Entitled() bool {
	return g.Evaluator().IsEntitled()
}

// Prompt builds the upgrade prompt for action with the guard's offer.
func (g *Guard) Prompt(action domain.ActionKind) prompt.UpgradePrompt {
	if g == nil {
		return prompt.New(action, prompt.DefaultConfig())
	}
	return prompt.New(action, g.promptCfg)
}

// InlineWarning returns a static lock line for action, or "" when entitled.
func (g *Guard) InlineWarning(action domain.ActionKind) string {
	if g.Entitled() {
		return ""
	}
	return prompt.LockLine(g.Evaluator().ActionRestrictedMessage(action))
}

// check evaluates action and, on denial, runs every denial side effect.
func (g *Guard) check(ctx context.Context, action domain.ActionKind, surface domain.Surface) domain.Decision {
	if g == nil {
		return domain.Evaluate(false, action)
	}
	d := g.eval.CanPerformAction(action)
	g.metrics.Counter(observability.MetricEvaluations, 1,
		observability.T("action", action.String()),
		observability.T("allowed", boolTag(d.Allowed)),
	)
	if d.Allowed {
		if g.session != nil {
			g.session.resolve(action)
		}
		return d
	}
	g.blocked(ctx, action, surface, d)
	return d
}

func (g *Guard) blocked(ctx context.Context, action domain.ActionKind, surface domain.Surface, d domain.Decision) {
	if g.session != nil && d.ShowUpgradePrompt {
		g.session.open(action, g.Prompt(action))
	}
	if g.recorder != nil {
		g.recorder.RecordDenial(ctx, domain.NewDenial(g.eval.TenantID(), action, surface, d.Message))
	}
	if g.onBlocked != nil {
		g.onBlocked(d.Message)
	}
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
