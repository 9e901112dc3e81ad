package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/withObsrvr/nft-campaign-runner/internal/cli/cmd"
)

// Populated at build time via -ldflags.
var (
	version   string
	gitCommit string
	buildDate string
)

func main() {
	cmd.SetVersionInfo(version, gitCommit, buildDate)

	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
