package mcp

import (
	"fmt"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
)

type statusOutput struct {
	TenantID     string               `json:"tenantId"`
	IsPro        bool                 `json:"isPro"`
	IsFree       bool                 `json:"isFree"`
	IsLoading    bool                 `json:"isLoading"`
	Subscription *domain.Subscription `json:"subscription"`
}

func newStatusOutput(eval *application.Evaluator) statusOutput {
	return statusOutput{
		TenantID:     eval.TenantID(),
		IsPro:        eval.IsEntitled(),
		IsFree:       eval.IsFree(),
		IsLoading:    eval.IsLoading(),
		Subscription: eval.Subscription(),
	}
}

type moduleOutput struct {
	Module  string `json:"module"`
	Name    string `json:"name"`
	Access  bool   `json:"access"`
	Message string `json:"message,omitempty"`
}

// parseAction requires a concrete gated action.
func parseAction(value string) (domain.ActionKind, error) {
	action, err := domain.ParseAction(value)
	if err != nil {
		return domain.ActionNone, err
	}
	if action == domain.ActionNone {
		return domain.ActionNone, fmt.Errorf("%w: action is required", domain.ErrUnknownAction)
	}
	return action, nil
}
