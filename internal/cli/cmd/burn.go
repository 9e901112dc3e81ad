package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/nft-campaign-runner/internal/workflow"
)

var burnCmd = &cobra.Command{
	Use:   "burn-reap [workflow file]",
	Short: "Burn unclaimed items and reclaim gift account balances",
	Long: "Settle every gift account in the record range after the campaign ends:\n" +
		"burn the items the account still holds and transfer any remaining\n" +
		"balance back to the operator account.",
	Args:    cobra.ExactArgs(1),
	Example: `  campaign burn-reap workflow.yaml
  campaign burn-reap --dry-run workflow.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkflow(args[0], workflow.LoadExisting, func(ctx context.Context, wctx *workflow.Context) error {
			if err := wctx.RunBurnReap(ctx); err != nil {
				return err
			}
			fmt.Println(color.GreenString("✅ Gift accounts settled"))
			return nil
		})
	},
}

func init() {
	burnCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Report every chain submission without performing it")
	rootCmd.AddCommand(burnCmd)
}
