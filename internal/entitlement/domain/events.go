package domain

// Routing keys on the domain event exchange.
const (
	RoutingKeySubscriptionUpdated = "billing.subscription.updated"
	RoutingKeyActionDenied        = "entitlement.action.denied"
)

// SubscriptionUpdated is emitted by billing when a tenant's plan changes.
type SubscriptionUpdated struct {
	Subscription Subscription `json:"subscription"`
	Plan         *Plan        `json:"plan,omitempty"`
}

// ActionDenied is emitted whenever a guard blocks an action.
type ActionDenied struct {
	Denial Denial `json:"denial"`
}
