// Package batch implements the resumable batch-execution engine. It
// partitions a contiguous record range into fixed-size batches, invokes a
// caller-supplied action per batch, and persists progress through a
// caller-supplied checkpoint callback so an interrupted run resumes at the
// first uncommitted batch.
package batch

import (
	"context"

	"github.com/guregu/null"
	"github.com/pkg/errors"
)

// Info describes the record range a run is responsible for and how far
// previous runs got. CheckpointedBatchNo distinguishes "no checkpoint column
// present" from "zero batches committed"; both resume from batch 0.
type Info struct {
	StartRecordNo       int
	EndRecordNo         int
	BatchSize           int
	CheckpointedBatchNo null.Int
}

// Action performs the side effect for one sub-range [start, end). batchNo is
// 1-based. A returned error propagates immediately and leaves the checkpoint
// untouched, so the next run retries the same sub-range.
type Action func(ctx context.Context, start, end, batchNo int) error

// CheckpointFunc persists progress for one completed sub-range. It is
// invoked synchronously after the action returns, never batched or deferred.
type CheckpointFunc func(start, end, batchNo int) error

// Execute runs action over [info.StartRecordNo, info.EndRecordNo) in batches
// of info.BatchSize, in strictly increasing order with no gaps and no
// overlap. When the checkpointed batch count already covers the range, zero
// iterations occur.
//
// If the process dies after an action but before its checkpoint completes,
// re-running reprocesses that one sub-range: the engine guarantees
// at-least-once, not exactly-once, semantics for the in-flight batch.
func Execute(ctx context.Context, info Info, action Action, checkpoint CheckpointFunc) error {
	if err := validate(info); err != nil {
		return err
	}

	batchNo := int(info.CheckpointedBatchNo.ValueOrZero())
	for info.StartRecordNo+batchNo*info.BatchSize < info.EndRecordNo {
		start := info.StartRecordNo + batchNo*info.BatchSize
		end := info.StartRecordNo + (batchNo+1)*info.BatchSize
		if end > info.EndRecordNo {
			end = info.EndRecordNo
		}

		if err := action(ctx, start, end, batchNo+1); err != nil {
			return err
		}
		if err := checkpoint(start, end, batchNo+1); err != nil {
			return err
		}
		batchNo++
	}
	return nil
}

func validate(info Info) error {
	if info.StartRecordNo < 0 || info.EndRecordNo < 0 {
		return errors.Errorf("record range [%d, %d) must be non-negative",
			info.StartRecordNo, info.EndRecordNo)
	}
	if info.EndRecordNo < info.StartRecordNo {
		return errors.Errorf("record range end %d before start %d",
			info.EndRecordNo, info.StartRecordNo)
	}
	if info.BatchSize <= 0 {
		return errors.Errorf("batch size %d must be positive", info.BatchSize)
	}
	if info.CheckpointedBatchNo.Valid && info.CheckpointedBatchNo.Int64 < 0 {
		return errors.Errorf("checkpointed batch number %d must be non-negative",
			info.CheckpointedBatchNo.Int64)
	}
	return nil
}
