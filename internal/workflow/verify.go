package workflow

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// verify runs the pre-flight checks before any state is mutated: the
// configured initial fund must clear the chain's existential deposit, and
// every templated media file for the record range must exist on disk. It is
// far cheaper to find a missing image here than after half the batches are
// minted.
func (c *Context) verify(ctx context.Context) error {
	if fund := c.Config.Item.InitialFund; fund > 0 {
		deposit, err := c.Chain.ExistentialDeposit(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to query the existential deposit")
		}
		if fund < deposit {
			return errors.Errorf(
				"item.initial-fund %d is below the existential deposit %d", fund, deposit)
		}
	}

	meta := c.Config.Item.Metadata
	if meta == nil {
		return nil
	}

	data := c.Store.Data
	for i := data.StartRecordNo; i < data.EndRecordNo; i++ {
		if meta.ImageFileNameTemplate != "" {
			name := c.formatFileName(meta.ImageFileNameTemplate, i)
			path := filepath.Join(meta.ImageFolder, name)
			if _, err := os.Stat(path); err != nil {
				return errors.Errorf("image file %s for row %d does not exist", path, rowNumber(i))
			}
		}
		if meta.VideoFileNameTemplate != "" {
			name := c.formatFileName(meta.VideoFileNameTemplate, i)
			path := filepath.Join(meta.VideoFolder, name)
			if _, err := os.Stat(path); err != nil {
				return errors.Errorf("video file %s for row %d does not exist", path, rowNumber(i))
			}
		}
	}
	return nil
}
