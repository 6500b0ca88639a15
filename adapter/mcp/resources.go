package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
)

// RegisterResources registers read-only entitlement resources.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("vyora://actions").
		Name("Gated Actions").
		Description("Write actions that require Pro, with their restriction messages").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			type actionEntry struct {
				Action  string `json:"action"`
				Label   string `json:"label"`
				Message string `json:"message"`
			}
			actions := domain.AllActions()
			entries := make([]actionEntry, 0, len(actions))
			for _, a := range actions {
				entries = append(entries, actionEntry{
					Action:  a.String(),
					Label:   a.Label(),
					Message: domain.ActionRestrictedMessage(a),
				})
			}
			return jsonResource(uri, entries)
		})

	srv.Resource("vyora://modules").
		Name("Feature Modules").
		Description("Modules available on the free tier and modules that require Pro").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			pro := make([]map[string]string, 0, len(domain.ProModules))
			for module, name := range domain.ProModules {
				pro = append(pro, map[string]string{"module": module, "name": name})
			}
			sort.Slice(pro, func(i, j int) bool { return pro[i]["module"] < pro[j]["module"] })
			return jsonResource(uri, map[string]any{
				"free": domain.FreeModules,
				"pro":  pro,
			})
		})

	srv.Resource("vyora://subscription").
		Name("Subscription").
		Description("Subscription state of the default vendor").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil {
				return nil, fmt.Errorf("subscription requires initialization")
			}
			eval, err := app.Evaluator(ctx, "")
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, newStatusOutput(eval))
		})

	srv.Resource("vyora://denials/today").
		Name("Today's Denials").
		Description("Actions the default vendor was blocked from today").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Service == nil {
				return nil, fmt.Errorf("denials require database connection")
			}
			tenantID, err := app.ResolveTenant("")
			if err != nil {
				return nil, err
			}
			summary, err := app.Service.DenialSummary(ctx, tenantID, time.Now())
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, summary)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
