package workflow

import (
	"context"
	"log"
	"strconv"

	"github.com/guregu/null"
	"github.com/pkg/errors"

	"github.com/withObsrvr/nft-campaign-runner/pkg/batch"
	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
)

// mintItems mints one item per row in the record range, in batches guarded
// by the mint counter. Item ids are assigned sequentially from the
// collection's start item id, so batch N always owns the same id window no
// matter how many times the run is interrupted.
func (c *Context) mintItems(ctx context.Context) error {
	col := c.Store.Collection
	if col.ID == "" {
		return errors.Wrap(ErrPrecondition, "no collection id is recorded")
	}

	data := c.Store.Data
	cols := data.Table.Columns(checkpoint.ColAddress, checkpoint.ColItemID)
	addressCol, itemCol := cols[0], cols[1]

	if data.StartRecordNo < data.EndRecordNo {
		if addressCol.Values[data.StartRecordNo] == "" || addressCol.Values[data.EndRecordNo-1] == "" {
			return errors.Wrap(ErrPrecondition, "no gift address is recorded for the record range")
		}
	}

	if lastBatch := c.Store.Batch.Mint.ValueOrZero(); lastBatch > 0 {
		log.Printf("[INFO] Mint checkpoint spotted, continuing from batch %d", lastBatch)
	}

	action := func(ctx context.Context, start, end, batchNo int) error {
		log.Printf("[INFO] Minting batch %d for rows [%d, %d)", batchNo, start, end)
		startItemID := col.StartItemID + (batchNo-1)*c.Config.Item.BatchSize
		txs := make([]chain.Tx, 0, end-start)
		for i := start; i < end; i++ {
			itemID := startItemID + (i - start)
			txs = append(txs, chain.MintItem(col.ID, itemID, addressCol.Values[i]))
			itemCol.Values[i] = strconv.Itoa(itemID)
		}
		return c.submitBatch(ctx, txs)
	}
	checkpointBatch := func(start, end, batchNo int) error {
		if err := data.Table.SetColumns(itemCol); err != nil {
			return err
		}
		if err := c.checkpointData(); err != nil {
			return err
		}
		c.Store.Batch.Mint = null.IntFrom(int64(batchNo))
		return c.checkpointBatch()
	}

	err := batch.Execute(ctx, batch.Info{
		StartRecordNo:       data.StartRecordNo,
		EndRecordNo:         data.EndRecordNo,
		BatchSize:           c.Config.Item.BatchSize,
		CheckpointedBatchNo: c.Store.Batch.Mint,
	}, action, checkpointBatch)
	if err != nil {
		return err
	}

	log.Printf("[INFO] All items minted")
	return nil
}
