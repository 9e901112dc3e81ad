package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/nft-campaign-runner/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Workflow configuration commands",
	Long:  `Commands for validating and scaffolding workflow configuration files.`,
}

var validateCmd = &cobra.Command{
	Use:   "validate [workflow file]",
	Short: "Validate a workflow file",
	Long: `Load a workflow configuration file, apply environment overrides, and
report any errors without touching the chain or the pinning service.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := args[0]
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return fmt.Errorf("workflow file does not exist: %s", configFile)
		}

		cfg, err := config.Load(configFile)
		if err != nil {
			color.Red("❌ Workflow configuration has errors:")
			fmt.Printf("  • %v\n", err)
			return fmt.Errorf("workflow validation failed")
		}

		color.Green("✅ Workflow configuration is valid!")
		if verbose {
			fmt.Printf("  network endpoint: %s\n", cfg.Network.Endpoint)
			fmt.Printf("  data source:      %s\n", cfg.Item.Data.SourceFile)
			fmt.Printf("  batch size:       %d\n", cfg.Item.BatchSize)
			fmt.Printf("  checkpoint dir:   %s\n", cfg.CheckpointDir)
			fmt.Printf("  output file:      %s\n", cfg.OutputFile)
		}
		return nil
	},
}

var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example workflow file",
	Long:  `Print a commented example workflow configuration to stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(exampleWorkflow)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(exampleCmd)
}

const exampleWorkflow = `# Example campaign workflow.
# Credentials may instead come from the environment (or a .env file):
#   CAMPAIGN_NETWORK_ACCOUNT_SEED, CAMPAIGN_PINNING_API_KEY,
#   CAMPAIGN_PINNING_SECRET_API_KEY.

network:
  endpoint: https://rpc.example.network
  account-seed: ""          # operator signing seed

pinning:
  api-key: ""
  secret-api-key: ""

collection:
  id: "12"
  metadata:
    name: Holiday Gifts 2026
    description: One-of-a-kind holiday gift drop
    image-file: ./media/collection.png

item:
  data:
    source-file: ./gifts.csv
    # offset: 2              # 1-based first row to process
    # count: 500             # number of rows to process
  batch-size: 100
  initial-fund: 1000000000
  metadata:
    name: Gift for <<name>>
    description: Thank you, <<name>>!
    image-folder: ./media/items
    image-file-name-template: <>.png

# metadata-folder: ./meta    # defaults to the data source directory
# checkpoint-dir: .checkpoint
`
