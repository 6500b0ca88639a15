package domain

import (
	"time"

	"github.com/google/uuid"
)

// Surface identifies which integration point blocked an action.
type Surface string

const (
	SurfaceWrapper    Surface = "wrapper"
	SurfaceButton     Surface = "button"
	SurfaceImperative Surface = "imperative"
	SurfaceHTTP       Surface = "http"
)

// Denial is an audit record of a blocked action.
type Denial struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Action     ActionKind `json:"action"`
	Surface    Surface    `json:"surface"`
	Message    string     `json:"message"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewDenial creates a denial record stamped with a fresh ID and the current time.
func NewDenial(tenantID string, action ActionKind, surface Surface, message string) Denial {
	return Denial{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Action:     action,
		Surface:    surface,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}
