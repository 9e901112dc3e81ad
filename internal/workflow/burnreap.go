package workflow

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
)

// reapConcurrency bounds how many accounts are settled at once. The calls
// are independent (one gift account each) so they may run concurrently
// without touching any batch counter.
const reapConcurrency = 8

// burnAndReap settles every gift account in the record range: burn items of
// this collection the account still holds (clearing their metadata first),
// then reclaim any remaining free balance to the operator account. Accounts
// that still hold items after the burn pass are left alone.
//
// The stage is deliberately not counter-checkpointed: it is recomputed from
// current chain state, and settling an already-empty account is a no-op, so
// re-running after a crash is safe.
func (c *Context) burnAndReap(ctx context.Context) error {
	col := c.Store.Collection
	if col.ID == "" {
		return errors.Wrap(ErrPrecondition, "no collection id is recorded")
	}

	data := c.Store.Data
	cols := data.Table.Columns(checkpoint.ColSecret, checkpoint.ColAddress)
	secretCol, addressCol := cols[0], cols[1]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reapConcurrency)

	for i := data.StartRecordNo; i < data.EndRecordNo; i++ {
		secret, address := secretCol.Values[i], addressCol.Values[i]
		if address == "" {
			continue
		}
		row := i
		g.Go(func() error {
			if err := c.settleAccount(gctx, secret, address); err != nil {
				return errors.Wrapf(err, "failed to settle account for row %d", rowNumber(row))
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Context) settleAccount(ctx context.Context, secret, address string) error {
	col := c.Store.Collection

	items, err := c.queryCollectionItems(ctx, address)
	if err != nil {
		return errors.Wrapf(err, "failed to query holdings of %s", address)
	}

	if len(items) > 0 {
		txs := make([]chain.Tx, 0, 2*len(items))
		for _, itemID := range items {
			hasMeta, err := c.itemHasMetadata(ctx, itemID)
			if err != nil {
				return err
			}
			if hasMeta {
				txs = append(txs, chain.ClearItemMetadata(col.ID, itemID))
			}
			txs = append(txs, chain.BurnItem(col.ID, itemID))
		}
		if err := c.submitBatch(ctx, txs); err != nil {
			return errors.Wrapf(err, "failed to burn %d item(s) of %s", len(items), address)
		}
		log.Printf("[INFO] Burned %d unclaimed item(s) held by %s", len(items), address)
	}

	// Re-check: the account may hold items this run does not manage.
	remaining, err := c.queryCollectionItems(ctx, address)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		log.Printf("[WARN] Account %s still holds %d item(s), skipping reap", address, len(remaining))
		return nil
	}

	balance, err := c.Chain.Query(ctx, "balances/account", address)
	if err != nil {
		return errors.Wrapf(err, "failed to query balance of %s", address)
	}
	if balance.Get("free").Uint() == 0 {
		return nil
	}

	if c.DryRun {
		log.Printf("[INFO] dry-run: would reap %s units from %s", balance.Get("free").String(), address)
		return nil
	}
	if secret == "" {
		log.Printf("[WARN] No secret recorded for %s, cannot reap its balance", address)
		return nil
	}
	if _, err := c.Chain.SubmitBatchAs(ctx, secret, []chain.Tx{
		chain.TransferAll(c.Chain.OperatorAddress(), false),
	}); err != nil {
		return errors.Wrapf(err, "failed to reap balance of %s", address)
	}
	log.Printf("[INFO] Reaped remaining balance of %s", address)
	return nil
}

func (c *Context) itemHasMetadata(ctx context.Context, itemID int) (bool, error) {
	result, err := c.Chain.Query(ctx, "nfts/itemMetadata", c.Store.Collection.ID, itemID)
	if err != nil {
		return false, errors.Wrapf(err, "failed to query metadata of item %d", itemID)
	}
	return result.Exists() && result.String() != "" && result.Raw != "null", nil
}
