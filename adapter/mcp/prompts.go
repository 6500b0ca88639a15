package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
)

// RegisterPrompts registers MCP prompts for upgrade conversations.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	cfg := prompt.DefaultConfig()
	if deps.App != nil {
		cfg = deps.App.PromptConfig
	}

	srv.Prompt("upgrade_pitch").
		Description("Explain to a vendor why an action is locked and what Pro unlocks.").
		Argument("action", "The blocked action, e.g. publish or export", false).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			action, err := domain.ParseAction(args["action"])
			if err != nil {
				return nil, err
			}
			p := prompt.New(action, cfg)

			var b strings.Builder
			fmt.Fprintf(&b, "A vendor on the free tier just tried to %s and was blocked.\n\n", actionPhrase(action))
			fmt.Fprintf(&b, "**Headline:** %s\n", p.Headline)
			fmt.Fprintf(&b, "**%s:** %s\n\n", p.OfferLabel, p.Price)
			b.WriteString("Pro includes:\n")
			for _, benefit := range p.Benefits {
				fmt.Fprintf(&b, "- %s\n", benefit)
			}
			fmt.Fprintf(&b, "\nWrite a short, friendly message that explains the restriction and points them to %s to upgrade. ", p.Route)
			b.WriteString("Do not pressure them; mention that free modules such as customers and leads stay available.")

			return &mcp.PromptResult{
				Description: p.Title,
				Messages: []mcp.PromptMessage{
					{
						Role:    string(mcp.RoleUser),
						Content: mcp.TextContent{Type: "text", Text: b.String()},
					},
				},
			}, nil
		})

	srv.Prompt("denial_review").
		Description("Review which actions the vendor keeps hitting the paywall on.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Denial Review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Review today's blocked actions for this vendor:

1. Read vyora://subscription to confirm the vendor's plan and payment status
2. Read vyora://denials/today for per-action counts and the latest denials

Then summarise which locked features the vendor reaches for most, and whether a
pending or failed payment (rather than a free plan) is the cause. Use
subscription.refresh if the subscription looks stale.`,
						},
					},
				},
			}, nil
		})

	return nil
}

func actionPhrase(action domain.ActionKind) string {
	if label := action.Label(); label != "" {
		return label
	}
	return "perform a Pro action"
}
