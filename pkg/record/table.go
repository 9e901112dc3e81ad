package record

import (
	"bytes"
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Load when no table file exists at the given
// path. Callers that treat a missing file as "no checkpoint yet" should
// branch on it with errors.Is.
var ErrNotFound = errors.New("record table not found")

// ErrLengthMismatch is returned by SetColumns when a column's value count
// does not match the table's row count. It indicates a programmer error and
// is always fatal.
var ErrLengthMismatch = errors.New("column length does not match row count")

// Table is an ordered header plus positionally aligned rows of string cells.
// Rows may be shorter than the header (sparse tail); they are padded with
// empty cells before any indexed write.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column is a named view over one table column, aligned to the table's rows.
type Column struct {
	Title  string
	Values []string
}

// Load reads a table with a header row from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "path %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read table %s", path)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // rows may have a sparse tail
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse table %s", path)
	}

	t := &Table{}
	if len(records) > 0 {
		t.Header = records[0]
		t.Rows = records[1:]
	}
	return t, nil
}

// Write persists the table to path, fully overwriting any previous content.
// The write goes through a temp file and rename so a crash mid-write never
// corrupts previously committed state.
func (t *Table) Write(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	for i, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to encode row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush table")
	}
	return writeAtomic(path, buf.Bytes())
}

// ColumnIndex resolves titles to header positions. Absent titles map to -1,
// which is a valid caller-visible state ("column must be created"), not an
// error.
func (t *Table) ColumnIndex(titles ...string) []int {
	idxs := make([]int, len(titles))
	for i, title := range titles {
		idxs[i] = -1
		for j, h := range t.Header {
			if h == title {
				idxs[i] = j
				break
			}
		}
	}
	return idxs
}

// Columns returns a view per title, each aligned to the table's rows. Cells
// of absent columns and sparse row tails read as the empty string.
func (t *Table) Columns(titles ...string) []Column {
	idxs := t.ColumnIndex(titles...)
	cols := make([]Column, len(titles))
	for i, title := range titles {
		values := make([]string, len(t.Rows))
		if idxs[i] >= 0 {
			for r, row := range t.Rows {
				if idxs[i] < len(row) {
					values[r] = row[idxs[i]]
				}
			}
		}
		cols[i] = Column{Title: title, Values: values}
	}
	return cols
}

// SetColumns writes each view back positionally, appending the column to the
// header first when absent. Every view must carry exactly one value per row.
func (t *Table) SetColumns(cols ...Column) error {
	idxs := make([]int, len(cols))
	for i, col := range cols {
		if len(col.Values) != len(t.Rows) {
			return errors.Wrapf(ErrLengthMismatch,
				"column %q has %d values for %d rows", col.Title, len(col.Values), len(t.Rows))
		}
		idx := t.ColumnIndex(col.Title)[0]
		if idx < 0 {
			t.Header = append(t.Header, col.Title)
			idx = len(t.Header) - 1
		}
		idxs[i] = idx
	}
	for r := range t.Rows {
		for c, col := range cols {
			for len(t.Rows[r]) <= idxs[c] {
				t.Rows[r] = append(t.Rows[r], "")
			}
			t.Rows[r][idxs[c]] = col.Values[r]
		}
	}
	return nil
}

// AppendColumn adds an empty-valued column to every row.
func (t *Table) AppendColumn(title string) {
	t.Header = append(t.Header, title)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], "")
	}
}
