package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/nft-campaign-runner/internal/cli/prompt"
	"github.com/withObsrvr/nft-campaign-runner/internal/config"
	"github.com/withObsrvr/nft-campaign-runner/internal/workflow"
	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/pinning"
)

var (
	dryRun bool

	runCmd = &cobra.Command{
		Use:   "run [workflow file]",
		Short: "Run a campaign workflow from configuration",
		Long: "Execute the full campaign pipeline: create the collection, pin media,\n" +
			"mint in batches, set metadata, and fund the gift accounts. Interrupted\n" +
			"runs resume from the last checkpoint.",
		Args: cobra.ExactArgs(1),
		Example: `  campaign run workflow.yaml
  campaign run --dry-run workflow.yaml
  campaign run --yes workflow.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkflow(args[0], workflow.Load, func(ctx context.Context, wctx *workflow.Context) error {
				fmt.Println(color.GreenString("🚀 Starting campaign from %s", args[0]))
				if err := wctx.Run(ctx); err != nil {
					return err
				}
				fmt.Println(color.GreenString("✅ Campaign completed successfully"))
				return nil
			})
		},
	}
)

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Report every chain submission and pin without performing it")
	rootCmd.AddCommand(runCmd)
}

// loadFunc selects how the workflow context is loaded: workflow.Load for
// run, workflow.LoadExisting for the commands that assume the collection is
// already on chain.
type loadFunc func(context.Context, *config.Workflow, workflow.ChainClient, workflow.Pinner,
	*prompt.Prompter, bool) (*workflow.Context, error)

// withWorkflow loads the workflow file, dials the collaborators, acquires the
// checkpoint lock, and hands the loaded context to fn under a signal-aware
// context. Checkpoints are kept on failure so the next run can resume.
func withWorkflow(configFile string, load loadFunc, fn func(context.Context, *workflow.Context) error) error {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return fmt.Errorf("workflow file not found: %s", configFile)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	chainClient, err := chain.Dial(cfg.Network)
	if err != nil {
		return err
	}
	pinner, err := pinning.NewClient(cfg.Pinning)
	if err != nil {
		return err
	}

	prompter := prompt.New()
	prompter.AssumeYes = assumeYes

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	wctx, err := load(ctx, cfg, chainClient, pinner, prompter, dryRun)
	if err != nil {
		return err
	}
	defer wctx.Unlock()

	if err := fn(ctx, wctx); err != nil {
		fmt.Println(color.YellowString(
			"Checkpoints are kept in %s; fix the problem and re-run to resume", cfg.CheckpointDir))
		return err
	}
	return nil
}
