// Package cmd wires the campaign commands: run, update-metadata, burn-reap,
// config, and version.
package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose   bool
	assumeYes bool

	rootCmd = &cobra.Command{
		Use:   "campaign",
		Short: "NFT gift campaign runner",
		Long: color.CyanString(
			`Campaign - mint, fund, and later reclaim NFT gift drops in resumable batches`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false,
		"answer every prompt with its default, for non-interactive runs")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
