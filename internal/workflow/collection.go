package workflow

import (
	"context"
	"log"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
)

// createCollection submits the collection-creation transaction unless the
// collection was already created in an earlier run (checkpointed id matches)
// or the operator chose to append to a pre-existing collection during load
// reconciliation.
func (c *Context) createCollection(ctx context.Context) error {
	col := c.Store.Collection

	switch {
	case col.FromCheckpoint && col.ID == c.Config.Collection.ID:
		log.Printf("[INFO] Collection information loaded from the checkpoint file")
		return nil
	case col.IsExisting:
		log.Printf("[INFO] Appending to existing collection %s starting at item %d",
			col.ID, col.StartItemID)
	default:
		if err := c.submitBatch(ctx, []chain.Tx{
			chain.CreateCollection(col.ID, c.Chain.OperatorAddress()),
		}); err != nil {
			return errors.Wrapf(err, "failed to create collection %s", col.ID)
		}
	}
	return c.checkpointCollection()
}

// setCollectionMetadata generates, pins, and sets the collection-level
// metadata once. A configured run without collection metadata needs an
// explicit operator confirmation to proceed.
func (c *Context) setCollectionMetadata(ctx context.Context) error {
	col := c.Store.Collection
	if col.ID == "" {
		return errors.Wrap(ErrPrecondition, "no collection id is recorded")
	}

	if col.MetadataCid != "" {
		log.Printf("[INFO] Re-using collection metadata from the checkpoint")
		return nil
	}

	meta := c.Config.Collection.Metadata
	if meta == nil {
		ok, err := c.Prompt.Confirm(
			"No collection metadata is configured, do you want to continue without setting collection metadata?", false)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("configure collection.metadata in the workflow config")
		}
		return nil
	}

	metaPath := filepath.Join(c.Config.MetadataFolder, "collection.meta")
	result, err := c.generateMetadata(ctx, meta.Name, meta.Description,
		meta.ImageFile, meta.VideoFile, metaPath)
	if err != nil {
		return errors.Wrap(err, "failed to generate collection metadata")
	}

	if err := c.submitBatch(ctx, []chain.Tx{
		chain.SetCollectionMetadata(col.ID, result.MetaCid),
	}); err != nil {
		return errors.Wrapf(err, "failed to set metadata for collection %s", col.ID)
	}

	col.MetadataCid = result.MetaCid
	return c.checkpointCollection()
}
