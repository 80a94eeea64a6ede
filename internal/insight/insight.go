// Package insight derives the quantitative quality summary of a loaded table.
package insight

import (
	"sort"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
)

const bytesPerMB = 1024 * 1024

// Missing is the missingness of one column.
type Missing struct {
	Count      int     `json:"count" yaml:"count"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Summary is the structured result of Extract. Columns keeps the table's
// column order for presentation and is not serialized.
type Summary struct {
	RowCount          int                     `json:"rowCount" yaml:"rowCount"`
	ColumnCount       int                     `json:"columnCount" yaml:"columnCount"`
	MissingByColumn   map[string]Missing      `json:"missingByColumn" yaml:"missingByColumn"`
	TypeByColumn      map[string]dataset.Kind `json:"typeByColumn" yaml:"typeByColumn"`
	DuplicateRowCount int                     `json:"duplicateRowCount" yaml:"duplicateRowCount"`
	MemoryUsageMB     float64                 `json:"memoryUsageMB" yaml:"memoryUsageMB"`

	Columns []string `json:"-" yaml:"-"`
}

// Extract computes the summary in a single pass over t. It never mutates t
// and is safe to call concurrently.
func Extract(t *dataset.Table) Summary {
	cols := t.Columns()
	rows := t.Rows()
	s := Summary{
		RowCount:        rows,
		ColumnCount:     len(cols),
		MissingByColumn: make(map[string]Missing),
		TypeByColumn:    make(map[string]dataset.Kind, len(cols)),
		Columns:         make([]string, len(cols)),
	}
	for i, c := range cols {
		s.Columns[i] = c.Name()
		s.TypeByColumn[c.Name()] = c.Kind()
		if n := c.MissingCount(); n > 0 && rows > 0 {
			s.MissingByColumn[c.Name()] = Missing{Count: n, Percentage: float64(n) / float64(rows) * 100}
		}
	}
	s.DuplicateRowCount = countDuplicates(t)
	s.MemoryUsageMB = float64(t.MemoryBytes()) / bytesPerMB
	return s
}

// countDuplicates counts rows equal to an earlier row; first occurrences are
// not counted.
func countDuplicates(t *dataset.Table) int {
	seen := make(map[string]struct{}, t.Rows())
	dups := 0
	for i := 0; i < t.Rows(); i++ {
		k := t.RowKey(i)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// MissingColumns returns the columns with missingness in table order, or
// sorted by name when the summary was decoded without its column order.
func (s Summary) MissingColumns() []string {
	order := s.Columns
	if len(order) == 0 {
		for name := range s.MissingByColumn {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	var out []string
	for _, name := range order {
		if _, ok := s.MissingByColumn[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
