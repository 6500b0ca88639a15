package domain

import "time"

// SubscriptionStatus represents the lifecycle state reported by billing.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// PaymentStatus represents the verification state of the latest payment.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

// Plan describes the paid plan a subscription points at.
type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Price       string   `json:"price"`
	Features    []string `json:"features,omitempty"`
}

// Subscription is a read-only snapshot of a tenant's plan enrollment.
// It is owned by the external billing backend.
type Subscription struct {
	ID               string             `json:"id,omitempty"`
	TenantID         string             `json:"vendorId"`
	PlanID           string             `json:"planId"`
	Status           SubscriptionStatus `json:"status"`
	PaymentStatus    PaymentStatus      `json:"paymentStatus"`
	StartDate        *time.Time         `json:"startDate,omitempty"`
	CurrentPeriodEnd *time.Time         `json:"currentPeriodEnd,omitempty"`
	Plan             *Plan              `json:"plan,omitempty"`
	UpdatedAt        time.Time          `json:"updatedAt,omitempty"`
}

// IsEntitled reports whether the subscription grants paid features.
// Only an active subscription with a completed payment qualifies.
func (s *Subscription) IsEntitled() bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive && s.PaymentStatus == PaymentCompleted
}
