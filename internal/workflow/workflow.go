package workflow

import (
	"context"

	"github.com/fatih/color"
)

var stepTitle = color.New(color.FgCyan, color.Bold)

// Run executes the full campaign pipeline in order. Every stage is
// individually resumable; re-running after an interruption replays only the
// work that was never checkpointed.
func (c *Context) Run(ctx context.Context) error {
	stepTitle.Println("\nVerifying the workflow ...")
	if err := c.verify(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nCreating the collection ...")
	if err := c.createCollection(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nSetting collection metadata ...")
	if err := c.setCollectionMetadata(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nGenerating gift secrets ...")
	if err := c.generateGiftSecrets(); err != nil {
		return err
	}

	stepTitle.Println("\nMinting items ...")
	if err := c.mintItems(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nUploading and pinning item metadata ...")
	if err := c.pinAndSetItemMetadata(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nSetting item metadata on chain ...")
	if err := c.setItemMetadata(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nSeeding the gift accounts with initial funds ...")
	if err := c.sendInitialFunds(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nExporting the final result ...")
	if err := c.exportFinalResult(); err != nil {
		return err
	}

	return c.Clean()
}

// RunUpdateMetadata re-runs only the metadata stages against an existing
// collection: pin media and documents, then set the on-chain metadata. The
// collection and items must already exist.
func (c *Context) RunUpdateMetadata(ctx context.Context) error {
	stepTitle.Println("\nVerifying the workflow ...")
	if err := c.verify(ctx); err != nil {
		return err
	}

	// The collection must already be on chain; record the configured id
	// without creating anything.
	c.Store.Collection.ID = c.Config.Collection.ID

	stepTitle.Println("\nSetting collection metadata ...")
	if err := c.setCollectionMetadata(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nUploading and pinning item metadata ...")
	if err := c.pinAndSetItemMetadata(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nSetting item metadata on chain ...")
	if err := c.setItemMetadata(ctx); err != nil {
		return err
	}

	stepTitle.Println("\nExporting the final result ...")
	if err := c.exportFinalResult(); err != nil {
		return err
	}

	return c.Clean()
}

// RunBurnReap settles all gift accounts in the record range and leaves the
// checkpoints in place, since the stage is recomputed from chain state.
func (c *Context) RunBurnReap(ctx context.Context) error {
	stepTitle.Println("\nBurning unclaimed items and reaping balances ...")
	return c.burnAndReap(ctx)
}
