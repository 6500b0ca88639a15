package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/vyora/adapter/cli"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

type tenantInput struct {
	Tenant string `json:"tenant,omitempty"`
}

type actionInput struct {
	Tenant string `json:"tenant,omitempty"`
	Action string `json:"action" jsonschema:"required"`
}

type messageInput struct {
	Action string `json:"action,omitempty"`
}

type moduleInput struct {
	Tenant string `json:"tenant,omitempty"`
	Module string `json:"module" jsonschema:"required"`
}

// RegisterTools registers the entitlement tools.
func RegisterTools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}
	registerSubscriptionTools(srv, deps)
	registerActionTools(srv, deps)
	return nil
}

func registerSubscriptionTools(srv *mcp.Server, deps ToolDependencies) {
	app := deps.App

	srv.Tool("subscription.status").
		Description("Get the vendor's subscription and whether it is Pro").
		Handler(func(ctx context.Context, input tenantInput) (statusOutput, error) {
			eval, err := app.Evaluator(ctx, input.Tenant)
			if err != nil {
				return statusOutput{}, err
			}
			return newStatusOutput(eval), nil
		})

	srv.Tool("subscription.refresh").
		Description("Refetch the vendor's subscription from the billing source").
		Handler(func(ctx context.Context, input tenantInput) (statusOutput, error) {
			eval, err := app.Refresh(ctx, input.Tenant)
			if err != nil {
				return statusOutput{}, err
			}
			return newStatusOutput(eval), nil
		})
}

func registerActionTools(srv *mcp.Server, deps ToolDependencies) {
	app := deps.App

	srv.Tool("action.check").
		Description("Check whether the vendor may perform a write action (save, publish, export...)").
		Handler(func(ctx context.Context, input actionInput) (domain.Decision, error) {
			action, err := parseAction(input.Action)
			if err != nil {
				return domain.Decision{}, err
			}
			eval, err := app.Evaluator(ctx, input.Tenant)
			if err != nil {
				return domain.Decision{}, err
			}
			return eval.CanPerformAction(action), nil
		})

	srv.Tool("action.message").
		Description("Get the upgrade message shown when an action is restricted").
		Handler(func(ctx context.Context, input messageInput) (map[string]string, error) {
			action, err := domain.ParseAction(input.Action)
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"action":  action.String(),
				"message": domain.ActionRestrictedMessage(action),
			}, nil
		})

	srv.Tool("action.attempt").
		Description("Run an action through the guard; denials are audited").
		Handler(func(ctx context.Context, input actionInput) (guard.Result[string], error) {
			action, err := parseAction(input.Action)
			if err != nil {
				return guard.Result[string]{}, err
			}
			g, err := app.Guard(ctx, input.Tenant)
			if err != nil {
				return guard.Result[string]{}, err
			}
			return guard.Do(ctx, g, action, func(ctx context.Context) (string, error) {
				return action.String() + " allowed", nil
			})
		})

	srv.Tool("module.access").
		Description("Check whether the vendor can open a feature module").
		Handler(func(ctx context.Context, input moduleInput) (moduleOutput, error) {
			if input.Module == "" {
				return moduleOutput{}, errors.New("module is required")
			}
			eval, err := app.Evaluator(ctx, input.Tenant)
			if err != nil {
				return moduleOutput{}, err
			}
			out := moduleOutput{
				Module: input.Module,
				Name:   domain.ModuleDisplayName(input.Module),
				Access: eval.CanAccess(input.Module),
			}
			if !out.Access {
				out.Message = eval.ModuleRestrictedMessage(input.Module)
			}
			return out, nil
		})
}
