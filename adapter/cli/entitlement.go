package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
)

type statusView struct {
	TenantID     string               `json:"tenantId"`
	IsPro        bool                 `json:"isPro"`
	IsFree       bool                 `json:"isFree"`
	IsLoading    bool                 `json:"isLoading"`
	Subscription *domain.Subscription `json:"subscription"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the vendor's subscription and tier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		eval, err := a.Evaluator(cmd.Context(), tenantFlag)
		if err != nil {
			return err
		}

		view := statusView{
			TenantID:     eval.TenantID(),
			IsPro:        eval.IsEntitled(),
			IsFree:       eval.IsFree(),
			IsLoading:    eval.IsLoading(),
			Subscription: eval.Subscription(),
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, view)
		}

		printField(out, "Vendor", view.TenantID)
		printField(out, "Tier", tierBadge(view.IsPro))
		sub := view.Subscription
		if sub == nil {
			printField(out, "Plan", "none")
			return nil
		}
		plan := sub.PlanID
		if sub.Plan != nil && sub.Plan.DisplayName != "" {
			plan = sub.Plan.DisplayName
		}
		printField(out, "Plan", plan)
		printField(out, "Status", string(sub.Status))
		printField(out, "Payment", string(sub.PaymentStatus))
		if sub.CurrentPeriodEnd != nil {
			printField(out, "Renews", sub.CurrentPeriodEnd.Format(time.DateOnly))
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <action>",
	Short: "Check whether an action is allowed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		action, err := parseRequiredAction(args[0])
		if err != nil {
			return err
		}
		eval, err := a.Evaluator(cmd.Context(), tenantFlag)
		if err != nil {
			return err
		}

		d := eval.CanPerformAction(action)
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, d)
		}
		if d.Allowed {
			fmt.Fprintln(out, allowedStyle.Render("✓ "+action.String()+" allowed"))
			return nil
		}
		fmt.Fprintln(out, prompt.LockLine(d.Message))
		return nil
	},
}

var messageCmd = &cobra.Command{
	Use:   "message [action]",
	Short: "Print the restriction message for an action",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var action domain.ActionKind
		if len(args) == 1 {
			var err error
			if action, err = domain.ParseAction(args[0]); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), domain.ActionRestrictedMessage(action))
		return nil
	},
}

type moduleView struct {
	Module  string `json:"module"`
	Name    string `json:"name"`
	Access  bool   `json:"access"`
	Message string `json:"message,omitempty"`
}

func moduleAccess(eval *application.Evaluator, module string) moduleView {
	v := moduleView{
		Module: module,
		Name:   domain.ModuleDisplayName(module),
		Access: eval.CanAccess(module),
	}
	if !v.Access {
		v.Message = eval.ModuleRestrictedMessage(module)
	}
	return v
}

func knownModules() []string {
	modules := append([]string{}, domain.FreeModules...)
	pro := make([]string, 0, len(domain.ProModules))
	for m := range domain.ProModules {
		pro = append(pro, m)
	}
	sort.Strings(pro)
	return append(modules, pro...)
}

var modulesCmd = &cobra.Command{
	Use:   "modules [module]",
	Short: "Show which feature modules the vendor can open",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		eval, err := a.Evaluator(cmd.Context(), tenantFlag)
		if err != nil {
			return err
		}

		modules := knownModules()
		if len(args) == 1 {
			modules = args
		}
		views := make([]moduleView, 0, len(modules))
		for _, m := range modules {
			views = append(views, moduleAccess(eval, m))
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if len(args) == 1 {
				return printJSON(out, views[0])
			}
			return printJSON(out, views)
		}
		for _, v := range views {
			if v.Access {
				fmt.Fprintln(out, allowedStyle.Render("✓ ")+v.Module)
				continue
			}
			fmt.Fprintln(out, prompt.LockLabel(v.Module)+"  "+v.Message)
		}
		return nil
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt [action]",
	Short: "Render the upgrade prompt",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := prompt.DefaultConfig()
		if a := GetApp(); a != nil {
			cfg = a.PromptConfig
		}
		var action domain.ActionKind
		if len(args) == 1 {
			var err error
			if action, err = domain.ParseAction(args[0]); err != nil {
				return err
			}
		}

		p := prompt.New(action, cfg)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), p)
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompt.Render(p))
		return nil
	},
}

var attemptCmd = &cobra.Command{
	Use:   "attempt <action>",
	Short: "Run an action through the guard, showing the upgrade prompt when denied",
	Long: `Attempt evaluates the action the way an application guard would.
A denial is recorded in the audit log and the upgrade prompt is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		action, err := parseRequiredAction(args[0])
		if err != nil {
			return err
		}
		session := guard.NewSession()
		g, err := a.Guard(cmd.Context(), tenantFlag, guard.WithSession(session))
		if err != nil {
			return err
		}

		res, err := guard.Do(cmd.Context(), g, action, func(ctx context.Context) (string, error) {
			return action.String() + " allowed", nil
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		if res.Executed {
			fmt.Fprintln(out, allowedStyle.Render("✓ "+res.Value))
			return nil
		}
		fmt.Fprintln(out, prompt.LockLine(res.Message))
		if p, ok := session.Prompt(); ok {
			fmt.Fprintln(out, prompt.Render(p))
		}
		return nil
	},
}

func parseRequiredAction(s string) (domain.ActionKind, error) {
	action, err := domain.ParseAction(s)
	if err != nil {
		return domain.ActionNone, err
	}
	if action == domain.ActionNone {
		return domain.ActionNone, fmt.Errorf("%w: action is required", domain.ErrUnknownAction)
	}
	return action, nil
}

func init() {
	rootCmd.AddCommand(statusCmd, checkCmd, messageCmd, modulesCmd, promptCmd, attemptCmd)
}
