// Package mcp serves the entitlement tools over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"

	"github.com/felixgeelhaar/vyora/adapter/cli"
	mcptools "github.com/felixgeelhaar/vyora/adapter/mcp"
	"github.com/felixgeelhaar/vyora/pkg/config"
)

// Serve runs the MCP HTTP endpoint on cfg.MCPAddr until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, app *cli.App, logger *slog.Logger) error {
	switch {
	case cfg == nil:
		return errors.New("config is required")
	case app == nil:
		return errors.New("CLI app is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := NewServer(app, logger)
	if err != nil {
		return err
	}

	logger.Info("mcp server listening",
		"addr", cfg.MCPAddr,
		"default_tenant", app.DefaultTenant,
		"authenticated", cfg.MCPAuthToken != "",
	)
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil,
		mcpgo.WithMiddleware(middlewareStack(cfg.MCPAuthToken, logger)...))
}

// middlewareStack puts bearer auth in front of the default stack when a
// token is configured.
func middlewareStack(token string, logger *slog.Logger) []middleware.Middleware {
	log := slogAdapter{logger: logger}
	stack := middleware.DefaultStack(log)
	if token == "" {
		logger.Warn("MCP_AUTH_TOKEN not set; MCP requests are unauthenticated")
		return stack
	}

	auth := middleware.Auth(
		middleware.BearerTokenAuthenticator(middleware.StaticTokens(map[string]*middleware.Identity{
			token: {ID: "vyora-mcp-client", Name: "mcp client"},
		})),
		middleware.WithAuthLogger(log),
	)
	return append([]middleware.Middleware{auth}, stack...)
}

// NewServer builds the MCP server. Tools are required; resources and
// prompts are best effort.
func NewServer(app *cli.App, logger *slog.Logger) (*mcpgo.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:    "vyora-mcp",
		Version: cli.Version,
		Capabilities: mcpgo.Capabilities{
			Tools:     true,
			Resources: true,
			Prompts:   true,
		},
	})

	deps := mcptools.ToolDependencies{App: app}
	if err := mcptools.RegisterTools(srv, deps); err != nil {
		return nil, err
	}
	for name, register := range map[string]func(*mcpgo.Server, mcptools.ToolDependencies) error{
		"resources": mcptools.RegisterResources,
		"prompts":   mcptools.RegisterPrompts,
	} {
		if err := register(srv, deps); err != nil {
			logger.Warn("failed to register MCP "+name, "error", err)
		}
	}
	return srv, nil
}

// slogAdapter satisfies the middleware logger with slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) log(level slog.Level, msg string, fields []middleware.Field) {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	a.logger.Log(context.Background(), level, msg, args...)
}

func (a slogAdapter) Debug(msg string, fields ...middleware.Field) { a.log(slog.LevelDebug, msg, fields) }
func (a slogAdapter) Info(msg string, fields ...middleware.Field)  { a.log(slog.LevelInfo, msg, fields) }
func (a slogAdapter) Warn(msg string, fields ...middleware.Field)  { a.log(slog.LevelWarn, msg, fields) }
func (a slogAdapter) Error(msg string, fields ...middleware.Field) { a.log(slog.LevelError, msg, fields) }
