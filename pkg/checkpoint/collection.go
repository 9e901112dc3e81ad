package checkpoint

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/withObsrvr/nft-campaign-runner/pkg/record"
)

// Querier is the slice of the chain client the collection store needs for
// existence reconciliation.
type Querier interface {
	Query(ctx context.Context, path string, args ...any) (gjson.Result, error)
}

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(message string) (bool, error)

// CollectionStore is the singleton record describing the on-chain collection
// this run mints into. Populated once during the collection-creation stage
// and immutable afterwards except for the metadata content id.
type CollectionStore struct {
	path string

	ID          string
	MetadataCid string
	StartItemID int
	IsExisting  bool

	// FromCheckpoint reports whether Load found a previously checkpointed
	// collection record. The creation stage uses it to tell "created in an
	// earlier run" apart from "recorded to create".
	FromCheckpoint bool
}

// Load reads the checkpointed collection state, then reconciles it against
// the configured collection id. When the configured id differs from the
// checkpointed one, the chain is asked whether that collection exists; if it
// does, the operator must confirm appending to it, and the starting item id
// is taken from the collection's current item count so new mints do not
// collide. Reconciliation runs at most once per id per checkpoint lifetime:
// once a matching id is checkpointed it is skipped entirely.
func (cs *CollectionStore) Load(ctx context.Context, configuredID string, q Querier, confirm ConfirmFunc) error {
	table, err := record.Load(cs.path)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		return err
	}
	if err == nil && len(table.Rows) > 0 {
		cols := table.Columns(ColCollectionID, ColCollectionMetadata,
			ColCollectionStartItemID, ColCollectionExisting)
		cs.ID = cols[0].Values[0]
		cs.MetadataCid = cols[1].Values[0]
		if v := cols[2].Values[0]; v != "" {
			start, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "corrupt start item id %q in collection checkpoint", v)
			}
			cs.StartItemID = start
		}
		cs.IsExisting = cols[3].Values[0] == "true"
		cs.FromCheckpoint = cs.ID != ""
	}

	if cs.ID != "" && cs.ID == configuredID {
		// Already reconciled and checkpointed for this id.
		return nil
	}

	result, err := q.Query(ctx, "nfts/collection", configuredID)
	if err != nil {
		return errors.Wrapf(err, "failed to look up collection %s", configuredID)
	}
	if result.Exists() && result.Type != gjson.Null {
		ok, err := confirm(fmt.Sprintf(
			"A collection with id %s already exists, do you want to mint the items into it?",
			configuredID))
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf(
				"collection %s already exists; set a different collection id in the workflow config",
				configuredID)
		}
		cs.ID = configuredID
		cs.StartItemID = int(result.Get("items").Int())
		cs.IsExisting = true
		return nil
	}

	// Not on chain yet; record the id to create.
	cs.ID = configuredID
	cs.StartItemID = 0
	cs.IsExisting = false
	return nil
}

// Checkpoint serializes the collection record to disk.
func (cs *CollectionStore) Checkpoint() error {
	table := &record.Table{
		Header: []string{ColCollectionID, ColCollectionMetadata,
			ColCollectionStartItemID, ColCollectionExisting},
		Rows: [][]string{{
			cs.ID,
			cs.MetadataCid,
			strconv.Itoa(cs.StartItemID),
			strconv.FormatBool(cs.IsExisting),
		}},
	}
	return table.Write(cs.path)
}
