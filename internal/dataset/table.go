package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoColumns is returned when a table would have no columns.
	ErrNoColumns = errors.New("table has no columns")
	// ErrUnsupportedFormat is returned for file types the loaders cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrTooManyRows is returned when input exceeds LoadOptions.MaxRows.
	ErrTooManyRows = errors.New("too many rows")
	// ErrParse is returned when a file's contents cannot be decoded.
	ErrParse = errors.New("cannot parse file")
)

// IndexOverheadBytes is the fixed footprint attributed to the row index.
const IndexOverheadBytes = 128

// Table is an ordered set of equal-length columns. It is never mutated after
// construction and is safe to share between goroutines.
type Table struct {
	cols   []Column
	byName map[string]int
	rows   int
}

// NewTable validates the columns and assembles a table.
func NewTable(cols ...Column) (*Table, error) {
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	t := &Table{cols: append([]Column(nil), cols...), byName: make(map[string]int, len(cols)), rows: cols[0].Len()}
	for i, c := range cols {
		if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name(), c.Len(), t.rows)
		}
		if _, dup := t.byName[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name())
		}
		t.byName[c.Name()] = i
	}
	return t, nil
}

func (t *Table) Rows() int       { return t.rows }
func (t *Table) NumColumns() int { return len(t.cols) }

// Columns returns the columns in declared order.
func (t *Table) Columns() []Column { return append([]Column(nil), t.cols...) }

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// RowKey returns a collision-free encoding of row i's full value tuple.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for _, c := range t.cols {
		if c.IsMissing(i) {
			b.WriteString("-;")
			continue
		}
		k := c.Key(i)
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte(';')
	}
	return b.String()
}

// Row returns the display strings of row i; missing cells are empty.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.cols))
	for j, c := range t.cols {
		if !c.IsMissing(i) {
			out[j] = c.Key(i)
		}
	}
	return out
}

// MemoryBytes is the deep footprint of every column plus the index.
func (t *Table) MemoryBytes() int64 {
	n := int64(IndexOverheadBytes)
	for _, c := range t.cols {
		n += c.MemoryBytes()
	}
	return n
}
