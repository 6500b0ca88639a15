package domain

import "errors"

var (
	// ErrTenantRequired is returned when an operation needs a tenant and none is set.
	ErrTenantRequired = errors.New("tenant id is required")
	// ErrUnknownAction is returned when parsing an action outside the gated set.
	ErrUnknownAction = errors.New("unknown action")
	// ErrSubscriptionUnavailable wraps failures of the subscription source.
	ErrSubscriptionUnavailable = errors.New("subscription unavailable")
	// ErrStoreClosed is returned by a store after Close.
	ErrStoreClosed = errors.New("subscription store closed")
)
