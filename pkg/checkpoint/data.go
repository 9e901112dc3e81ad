package checkpoint

import (
	"io"
	"os"

	"github.com/guregu/null"
	"github.com/pkg/errors"

	"github.com/withObsrvr/nft-campaign-runner/pkg/record"
)

// DataStore holds the per-gift data table. The table is copied from the
// configured source file into checkpoint storage on first load, so the
// source is never mutated; all derived columns (secrets, addresses, content
// ids, item ids) grow on the checkpoint copy. The row count is fixed for the
// life of a run.
type DataStore struct {
	path string

	Table *record.Table

	// [StartRecordNo, EndRecordNo) delimits the rows this run is
	// responsible for. Rows outside the range are preserved but never
	// mutated.
	StartRecordNo int
	EndRecordNo   int
}

// Load copies the source file into the checkpoint directory when no data
// checkpoint exists yet, reads the table, and computes the record range from
// the configured 1-based offset and count. An absent count means "through
// the end of the table"; both ends are clamped to the row count, so an
// offset past the end yields an empty range and every stage becomes a
// no-op. With persist false (dry runs) a missing checkpoint is not created;
// the table is read straight from the source instead.
func (ds *DataStore) Load(sourceFile string, offset, count null.Int, persist bool) error {
	if sourceFile == "" {
		return errors.New("the data source file is not configured")
	}
	readPath := ds.path
	if _, err := os.Stat(ds.path); os.IsNotExist(err) {
		if !persist {
			readPath = sourceFile
		} else if err := copyFile(sourceFile, ds.path); err != nil {
			return errors.Wrapf(err, "failed to copy data source %s into checkpoint", sourceFile)
		}
	}

	table, err := record.Load(readPath)
	if err != nil {
		return err
	}
	ds.Table = table

	totalRows := len(table.Rows)
	start := int(offset.ValueOrZero()) - 1
	if start < 0 {
		start = 0
	}
	if start > totalRows {
		start = totalRows
	}
	recordCount := totalRows - start
	if count.Valid {
		recordCount = int(count.Int64)
	}
	end := start + recordCount
	if end > totalRows {
		end = totalRows
	}

	ds.StartRecordNo = start
	ds.EndRecordNo = end
	return nil
}

// Checkpoint persists the data table.
func (ds *DataStore) Checkpoint() error {
	return ds.Table.Write(ds.path)
}

// WriteFinal copies the checkpointed data table to the output path.
func (ds *DataStore) WriteFinal(outFile string) error {
	return errors.Wrapf(copyFile(ds.path, outFile), "failed to write final data file %s", outFile)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
