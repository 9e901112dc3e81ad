// Package workflow wires the checkpoint stores, the chain gateway, and the
// pinning service into the campaign pipeline: create the collection, pin
// media, mint in batches, set metadata, fund the gift accounts, and later
// burn and reap whatever was never claimed.
package workflow

import (
	"context"
	"log"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/withObsrvr/nft-campaign-runner/internal/cli/prompt"
	"github.com/withObsrvr/nft-campaign-runner/internal/config"
	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
)

// ErrPrecondition marks a checkpoint that exists but is internally
// inconsistent (a column missing or only partially populated). The run stops
// and asks for manual intervention instead of attempting auto-repair.
var ErrPrecondition = errors.New("checkpoint is not in a correct state")

// ChainClient is the chain capability surface the stages consume.
type ChainClient interface {
	chain.Client
	OperatorAddress() string
}

// Pinner uploads files to the pinning service. Metadata documents are
// written to disk first and pinned as files, so this is the whole surface
// the stages need.
type Pinner interface {
	PinFile(ctx context.Context, path, name string, useCache bool) (string, error)
}

// Context is the process-wide aggregate for one run: configuration, the
// loaded checkpoint store, the external collaborators, and the dry-run flag.
// It is constructed once by the top-level command and passed into every
// stage; there is no module-level mutable state.
type Context struct {
	Config *config.Workflow
	Chain  ChainClient
	Pinner Pinner
	Store  *checkpoint.Store
	Prompt *prompt.Prompter
	DryRun bool

	lock *checkpoint.Lock
}

// Load acquires the checkpoint lock, resolves the resume-or-discard decision
// when previous checkpoints exist, and loads the three checkpoint stores.
// Minting into a collection that already exists on chain requires operator
// confirmation.
func Load(ctx context.Context, cfg *config.Workflow, chainClient ChainClient, pinner Pinner, prompter *prompt.Prompter, dryRun bool) (*Context, error) {
	return load(ctx, cfg, chainClient, pinner, prompter, dryRun, false)
}

// LoadExisting is Load for the commands that operate on an already-created
// collection (update-metadata, burn-reap): the collection being on chain is
// the expected state, so no append confirmation is asked.
func LoadExisting(ctx context.Context, cfg *config.Workflow, chainClient ChainClient, pinner Pinner, prompter *prompt.Prompter, dryRun bool) (*Context, error) {
	return load(ctx, cfg, chainClient, pinner, prompter, dryRun, true)
}

func load(ctx context.Context, cfg *config.Workflow, chainClient ChainClient, pinner Pinner, prompter *prompt.Prompter, dryRun, existingCollection bool) (*Context, error) {
	wctx := &Context{
		Config: cfg,
		Chain:  chainClient,
		Pinner: pinner,
		Store:  checkpoint.NewStore(cfg.CheckpointDir),
		Prompt: prompter,
		DryRun: dryRun,
	}

	lock, err := checkpoint.Acquire(cfg.CheckpointDir)
	if err != nil {
		return nil, err
	}
	wctx.lock = lock

	if wctx.Store.Exists() {
		resume, err := prompter.Confirm(
			"Previous checkpoints detected, do you want to continue from the last recorded checkpoint?", true)
		if err != nil {
			wctx.Unlock()
			return nil, err
		}
		if !resume {
			if err := wctx.discardCheckpoints(); err != nil {
				wctx.Unlock()
				return nil, err
			}
			color.Yellow("Previous checkpoints removed")
		}
	}

	if err := wctx.Store.EnsureDir(); err != nil {
		wctx.Unlock()
		return nil, err
	}

	confirm := func(message string) (bool, error) {
		if existingCollection {
			return true, nil
		}
		return prompter.Confirm(message, false)
	}
	if err := wctx.Store.Collection.Load(ctx, cfg.Collection.ID, chainClient, confirm); err != nil {
		wctx.Unlock()
		return nil, err
	}
	if err := wctx.Store.Batch.Load(); err != nil {
		wctx.Unlock()
		return nil, err
	}
	if err := wctx.Store.Data.Load(cfg.Item.Data.SourceFile,
		cfg.Item.Data.OffsetOrNull(), cfg.Item.Data.CountOrNull(), !dryRun); err != nil {
		wctx.Unlock()
		return nil, err
	}
	return wctx, nil
}

// discardCheckpoints removes previous progress but keeps the lock held.
func (c *Context) discardCheckpoints() error {
	if err := c.Store.Remove(); err != nil {
		return err
	}
	// Remove also deleted the lock file with the directory; retake it.
	lock, err := checkpoint.Acquire(c.Store.Dir())
	if err != nil {
		return err
	}
	c.lock = lock
	return nil
}

// Clean removes all checkpoint files after a fully successful run.
func (c *Context) Clean() error {
	if c.DryRun {
		log.Printf("[INFO] dry-run: leaving checkpoints untouched")
		return nil
	}
	return c.Store.Remove()
}

// Unlock releases the advisory lock. Safe to call on every exit path.
func (c *Context) Unlock() {
	c.lock.Release()
}

// submitBatch submits txs through the operator account unless dry-run is
// on, in which case it only reports what would be sent.
func (c *Context) submitBatch(ctx context.Context, txs []chain.Tx) error {
	if c.DryRun {
		for _, tx := range txs {
			log.Printf("[INFO] dry-run: would submit %s", tx)
		}
		return nil
	}
	_, err := c.Chain.SubmitBatch(ctx, txs)
	return err
}

// pinFile pins through the client unless dry-run is on.
func (c *Context) pinFile(ctx context.Context, path, name string, useCache bool) (string, error) {
	if c.DryRun {
		log.Printf("[INFO] dry-run: would pin %s as %s", path, name)
		return "dry-run-cid", nil
	}
	return c.Pinner.PinFile(ctx, path, name, useCache)
}

// checkpointData flushes the data table unless dry-run is on. Must be called
// immediately after the side effect the table records.
func (c *Context) checkpointData() error {
	if c.DryRun {
		return nil
	}
	return c.Store.Data.Checkpoint()
}

// checkpointBatch flushes the batch counters unless dry-run is on.
func (c *Context) checkpointBatch() error {
	if c.DryRun {
		return nil
	}
	return c.Store.Batch.Checkpoint()
}

// checkpointCollection flushes the collection record unless dry-run is on.
func (c *Context) checkpointCollection() error {
	if c.DryRun {
		return nil
	}
	return c.Store.Collection.Checkpoint()
}

// queryCollectionItems returns the item ids of this campaign's collection
// held by address.
func (c *Context) queryCollectionItems(ctx context.Context, address string) ([]int, error) {
	result, err := c.Chain.Query(ctx, "nfts/account", address, c.Store.Collection.ID)
	if err != nil {
		return nil, err
	}
	var items []int
	result.ForEach(func(_, value gjson.Result) bool {
		items = append(items, int(value.Int()))
		return true
	})
	return items, nil
}
