package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vyora/adapter/api"
)

var tokenTTL = api.DefaultTokenTTL

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a gateway bearer token for the vendor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		tenantID, err := a.ResolveTenant(tenantFlag)
		if err != nil {
			return err
		}
		issuer := a.Issuer
		if tokenTTL != api.DefaultTokenTTL {
			issuer = issuer.WithTTL(tokenTTL)
		}
		token, err := issuer.Issue(tenantID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", api.DefaultTokenTTL, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
