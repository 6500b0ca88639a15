package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/vyora/adapter/api"
	"github.com/felixgeelhaar/vyora/internal/app"
	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// App holds the CLI application dependencies.
type App struct {
	Registry      *application.Registry
	Service       *application.Service
	Health        *observability.HealthRegistry
	GuardOptions  []guard.Option
	PromptConfig  prompt.Config
	Issuer        *api.TokenIssuer
	DefaultTenant string
	OpenTimeout   time.Duration
}

// NewApp builds the CLI dependencies from a wired container.
func NewApp(c *app.Container) *App {
	secret := c.Config.JWTSecret
	if secret == "" {
		secret = api.DevJWTSecret
	}
	return &App{
		Registry:      c.Registry,
		Service:       c.Service,
		Health:        c.Health,
		GuardOptions:  c.GuardOptions(),
		PromptConfig:  c.PromptConfig,
		Issuer:        api.NewTokenIssuer(secret, api.DefaultTokenTTL),
		DefaultTenant: c.Config.TenantID,
		OpenTimeout:   c.Config.StoreRefreshTimeout,
	}
}

var globalApp *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	globalApp = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return globalApp
}

func requireApp() (*App, error) {
	if globalApp == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return globalApp, nil
}

// ResolveTenant returns tenantID, or the default tenant when it is empty.
func (a *App) ResolveTenant(tenantID string) (string, error) {
	if tenantID != "" {
		return tenantID, nil
	}
	if a.DefaultTenant != "" {
		return a.DefaultTenant, nil
	}
	return "", fmt.Errorf("%w: pass --tenant or set VYORA_TENANT_ID", domain.ErrTenantRequired)
}

// Evaluator opens the tenant's store and waits for the warm-up fetch.
func (a *App) Evaluator(ctx context.Context, tenantID string) (*application.Evaluator, error) {
	tenantID, err := a.ResolveTenant(tenantID)
	if err != nil {
		return nil, err
	}
	if a.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.OpenTimeout)
		defer cancel()
	}
	if _, err := a.Registry.Open(ctx, tenantID); err != nil {
		return nil, err
	}
	return a.Registry.Evaluator(tenantID), nil
}

// Refresh refetches the tenant's subscription, bypassing the snapshot.
func (a *App) Refresh(ctx context.Context, tenantID string) (*application.Evaluator, error) {
	tenantID, err := a.ResolveTenant(tenantID)
	if err != nil {
		return nil, err
	}
	store, err := a.Registry.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := store.Refetch(ctx); err != nil {
		return nil, err
	}
	return a.Registry.Evaluator(tenantID), nil
}

// Guard returns a guard for the tenant with the container's options.
func (a *App) Guard(ctx context.Context, tenantID string, extra ...guard.Option) (*guard.Guard, error) {
	eval, err := a.Evaluator(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	opts := append(append([]guard.Option{}, a.GuardOptions...), extra...)
	return guard.New(eval, opts...), nil
}
