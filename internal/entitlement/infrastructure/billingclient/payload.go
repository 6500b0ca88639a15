package billingclient

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
)

type subscriptionResponse struct {
	Subscription *subscriptionPayload `json:"subscription"`
	Plan         *planPayload         `json:"plan"`
}

type subscriptionPayload struct {
	ID               string       `json:"id"`
	VendorID         string       `json:"vendorId"`
	PlanID           string       `json:"planId"`
	Status           string       `json:"status" validate:"required,max=32"`
	PaymentStatus    string       `json:"paymentStatus" validate:"max=32"`
	StartDate        string       `json:"startDate"`
	CurrentPeriodEnd string       `json:"currentPeriodEnd"`
	Plan             *planPayload `json:"plan"`
}

type planPayload struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Price       flexString `json:"price"`
	Features    []string   `json:"features"`
}

func (p subscriptionResponse) toDomain(tenantID string) *domain.Subscription {
	s := p.Subscription
	sub := &domain.Subscription{
		ID:               s.ID,
		TenantID:         s.VendorID,
		PlanID:           s.PlanID,
		Status:           domain.SubscriptionStatus(strings.ToLower(strings.TrimSpace(s.Status))),
		PaymentStatus:    domain.PaymentStatus(strings.ToLower(strings.TrimSpace(s.PaymentStatus))),
		StartDate:        parseTime(s.StartDate),
		CurrentPeriodEnd: parseTime(s.CurrentPeriodEnd),
		UpdatedAt:        time.Now().UTC(),
	}
	if sub.TenantID == "" {
		sub.TenantID = tenantID
	}

	plan := p.Plan
	if plan == nil {
		plan = s.Plan
	}
	if plan != nil {
		sub.Plan = &domain.Plan{
			ID:          plan.ID,
			Name:        plan.Name,
			DisplayName: plan.DisplayName,
			Price:       string(plan.Price),
			Features:    plan.Features,
		}
	}
	return sub
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
