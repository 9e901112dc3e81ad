package checkpoint

import (
	"strconv"

	"github.com/guregu/null"
	"github.com/pkg/errors"

	"github.com/withObsrvr/nft-campaign-runner/pkg/record"
)

// BatchStore is the singleton row of per-stage batch counters. A counter of
// N means N batches of that stage are durably committed and must not be
// redone. An absent column and a zero counter are equivalent: both resume
// from batch 0; null.Int keeps the distinction explicit rather than an
// accident of zero values.
type BatchStore struct {
	path string

	Mint            null.Int
	MetaCid         null.Int
	SetMetadata     null.Int
	BalanceTransfer null.Int
}

// Load reads whichever counters are present. A missing file or column means
// the stage never ran; neither is an error.
func (bs *BatchStore) Load() error {
	table, err := record.Load(bs.path)
	if errors.Is(err, record.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return nil
	}

	cols := table.Columns(ColLastMintBatch, ColLastSetMetadataBatch,
		ColLastMetaCidBatch, ColLastBalanceTxBatch)
	for i, counter := range []*null.Int{&bs.Mint, &bs.SetMetadata, &bs.MetaCid, &bs.BalanceTransfer} {
		v := cols[i].Values[0]
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "corrupt batch counter %q in column %q", v, cols[i].Title)
		}
		*counter = null.IntFrom(n)
	}
	return nil
}

// Checkpoint persists all four counters.
func (bs *BatchStore) Checkpoint() error {
	table := &record.Table{
		Header: []string{ColLastMintBatch, ColLastSetMetadataBatch,
			ColLastMetaCidBatch, ColLastBalanceTxBatch},
		Rows: [][]string{{
			strconv.FormatInt(bs.Mint.ValueOrZero(), 10),
			strconv.FormatInt(bs.SetMetadata.ValueOrZero(), 10),
			strconv.FormatInt(bs.MetaCid.ValueOrZero(), 10),
			strconv.FormatInt(bs.BalanceTransfer.ValueOrZero(), 10),
		}},
	}
	return table.Write(bs.path)
}
