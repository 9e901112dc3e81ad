package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/nft-campaign-runner/internal/workflow"
)

var updateCmd = &cobra.Command{
	Use:   "update-metadata [workflow file]",
	Short: "Re-pin and re-set metadata for an existing campaign",
	Long: "Run only the metadata stages against a collection that already exists\n" +
		"on chain: pin the media and documents, then set the collection and item\n" +
		"metadata. The items must already be minted.",
	Args:    cobra.ExactArgs(1),
	Example: `  campaign update-metadata workflow.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkflow(args[0], workflow.LoadExisting, func(ctx context.Context, wctx *workflow.Context) error {
			if err := wctx.RunUpdateMetadata(ctx); err != nil {
				return err
			}
			fmt.Println(color.GreenString("✅ Metadata updated successfully"))
			return nil
		})
	},
}

func init() {
	updateCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Report every chain submission and pin without performing it")
	rootCmd.AddCommand(updateCmd)
}
