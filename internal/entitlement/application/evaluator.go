package application

import "github.com/felixgeelhaar/vyora/internal/entitlement/domain"

// EntitlementReader is the read side of a subscription store.
type EntitlementReader interface {
	Entitled() bool
	IsLoading() bool
	Subscription() *domain.Subscription
	TenantID() string
}

// Evaluator answers gating questions against the current snapshot.
// It performs no I/O and has no side effects. A nil Evaluator, or one
// without a reader, behaves as a tenant with no subscription.
type Evaluator struct {
	reader EntitlementReader
}

// NewEvaluator binds an evaluator to reader. A nil *Store is accepted.
func NewEvaluator(reader EntitlementReader) *Evaluator {
	if s, ok := reader.(*Store); ok && s == nil {
		reader = nil
	}
	return &Evaluator{reader: reader}
}

// TenantID returns the tenant of the bound store, if any.
func (e *Evaluator) TenantID() string {
	if e == nil || e.reader == nil {
		return ""
	}
	return e.reader.TenantID()
}

// IsEntitled reports whether the tenant may use Pro features.
func (e *Evaluator) IsEntitled() bool {
	if e == nil || e.reader == nil {
		return false
	}
	return e.reader.Entitled()
}

// IsFree is the negation of IsEntitled.
func (e *Evaluator) IsFree() bool {
	return !e.IsEntitled()
}

// IsLoading reports whether the first fetch is still pending.
func (e *Evaluator) IsLoading() bool {
	if e == nil || e.reader == nil {
		return false
	}
	return e.reader.IsLoading()
}

// Subscription returns the raw snapshot, or nil.
func (e *Evaluator) Subscription() *domain.Subscription {
	if e == nil || e.reader == nil {
		return nil
	}
	return e.reader.Subscription()
}

// CanPerformAction decides whether action may run.
func (e *Evaluator) CanPerformAction(action domain.ActionKind) domain.Decision {
	return domain.Evaluate(e.IsEntitled(), action)
}

// WouldAllow reports the Allowed field of CanPerformAction.
func (e *Evaluator) WouldAllow(action domain.ActionKind) bool {
	return e.CanPerformAction(action).Allowed
}

// ActionRestrictedMessage returns the denial text without evaluating.
func (e *Evaluator) ActionRestrictedMessage(action domain.ActionKind) string {
	return domain.ActionRestrictedMessage(action)
}

// CanAccess reports whether the tenant may open module.
func (e *Evaluator) CanAccess(module string) bool {
	if e.IsEntitled() {
		return true
	}
	return domain.IsFreeModule(module)
}

// ModuleRestrictedMessage returns the denial text for module.
func (e *Evaluator) ModuleRestrictedMessage(module string) string {
	return domain.ModuleRestrictedMessage(module)
}
