package workflow

import (
	"context"
	"fmt"
	"log"

	"github.com/guregu/null"
	"github.com/pkg/errors"

	"github.com/withObsrvr/nft-campaign-runner/pkg/batch"
	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
)

// sendInitialFunds seeds every gift account in the record range with the
// configured amount, in batches guarded by the balance-transfer counter.
// When the amount will not keep the account alive after it pays a claim fee,
// the operator is asked once whether to proceed anyway.
func (c *Context) sendInitialFunds(ctx context.Context) error {
	amount := c.Config.Item.InitialFund
	if amount == 0 {
		log.Printf("[INFO] No initial fund is configured, skipping")
		return nil
	}

	data := c.Store.Data
	cols := data.Table.Columns(checkpoint.ColAddress)
	addressCol := cols[0]

	if data.StartRecordNo < data.EndRecordNo {
		if addressCol.Values[data.StartRecordNo] == "" || addressCol.Values[data.EndRecordNo-1] == "" {
			return errors.Wrap(ErrPrecondition, "no gift address is recorded for the record range")
		}
	}

	minimum, err := c.minimumViableFund(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to compute the minimum viable fund")
	}
	if amount < minimum {
		ok, err := c.Prompt.Confirm(fmt.Sprintf(
			"The configured initial fund %d is below the minimum viable %d, fund anyway?",
			amount, minimum), false)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("raise item.initial-fund to at least %d", minimum)
		}
	}

	if lastBatch := c.Store.Batch.BalanceTransfer.ValueOrZero(); lastBatch > 0 {
		log.Printf("[INFO] Funding checkpoint spotted, continuing from batch %d", lastBatch)
	}

	action := func(ctx context.Context, start, end, batchNo int) error {
		log.Printf("[INFO] Funding batch %d for rows [%d, %d)", batchNo, start, end)
		txs := make([]chain.Tx, 0, end-start)
		for i := start; i < end; i++ {
			txs = append(txs, chain.Transfer(addressCol.Values[i], amount))
		}
		return c.submitBatch(ctx, txs)
	}
	checkpointBatch := func(start, end, batchNo int) error {
		c.Store.Batch.BalanceTransfer = null.IntFrom(int64(batchNo))
		return c.checkpointBatch()
	}

	err = batch.Execute(ctx, batch.Info{
		StartRecordNo:       data.StartRecordNo,
		EndRecordNo:         data.EndRecordNo,
		BatchSize:           c.Config.Item.BatchSize,
		CheckpointedBatchNo: c.Store.Batch.BalanceTransfer,
	}, action, checkpointBatch)
	if err != nil {
		return err
	}

	log.Printf("[INFO] All gift accounts funded")
	return nil
}

// minimumViableFund is the existential deposit plus the estimated fee of one
// claim transfer, i.e. the smallest amount that lets a gift account both
// exist and pay its way out.
func (c *Context) minimumViableFund(ctx context.Context) (uint64, error) {
	deposit, err := c.Chain.ExistentialDeposit(ctx)
	if err != nil {
		return 0, err
	}
	fee, err := c.Chain.EstimateFee(ctx, chain.Transfer(c.Chain.OperatorAddress(), deposit))
	if err != nil {
		return 0, err
	}
	return deposit + fee, nil
}
