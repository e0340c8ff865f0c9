package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ErrMissingColumn reports a required column absent from a raw table. It is
// fatal for the stage that needed the column; the pipeline does not attempt
// partial recovery.
type ErrMissingColumn struct {
	Column string
}

func (e ErrMissingColumn) Error() string {
	return fmt.Sprintf("required column %q not found", e.Column)
}

// Table is a raw delimited table as read from the object store: a header and
// string-valued rows. Cleaners consume a Table and produce typed records.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// ReadTable parses a raw CSV stream. Rows may have ragged field counts; short
// rows read as empty cells. A UTF-8 BOM on the first column is stripped.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Columns: header, index: make(map[string]int, len(header))}
	for i, c := range header {
		t.index[strings.TrimSpace(c)] = i
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Col returns the index of a required column.
func (t *Table) Col(name string) (int, error) {
	if t.index == nil {
		return 0, ErrMissingColumn{Column: name}
	}
	idx, ok := t.index[name]
	if !ok {
		return 0, ErrMissingColumn{Column: name}
	}
	return idx, nil
}

// HasCol reports whether an optional column is present.
func (t *Table) HasCol(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the trimmed cell at (row, col), or "" past a short row's end.
func (t *Table) Value(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return io.MultiReader(strings.NewReader(string(buf[3:n])), r)
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
