package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vyora/pkg/observability"
)

var (
	tenantFlag string
	jsonOutput bool
	logger     = slog.Default()
)

type startedAtKey struct{}

var rootCmd = &cobra.Command{
	Use:   "vyora",
	Short: "Vyora - Pro subscription gate",
	Long: `Vyora checks whether a vendor's subscription entitles them to
write actions such as save, publish or export, and shows the upgrade
prompt when it does not.`,
	SilenceUsage: true,
	// Every invocation gets its own correlation ID so the audit records it
	// writes can be traced back to one command.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctx := observability.WithCorrelationID(cmd.Context(), "")
		ctx = context.WithValue(ctx, startedAtKey{}, time.Now())
		cmd.SetContext(ctx)
		logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		started, ok := ctx.Value(startedAtKey{}).(time.Time)
		if !ok {
			return
		}
		logger.DebugContext(ctx, "command end",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&tenantFlag, "tenant", "t", "", "vendor id (defaults to VYORA_TENANT_ID)")
	flags.BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
}

// ExecuteContext runs the command named by os.Args.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetLogger replaces the CLI logger. nil keeps the current one.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
