package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// LoadOptions controls how raw files become a Table.
type LoadOptions struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t' from the header line.
	Delimiter rune
	// Numeric parsing locale. DecimalSeparator defaults to '.'.
	DecimalSeparator   rune
	ThousandsSeparator rune // optional; stripped before parsing when set
	// XLSX sheet selection. SheetIndex is 1-based; both empty means the first sheet.
	SheetName  string
	SheetIndex int
	// Categorical lists columns loaded as dictionary-encoded categories.
	Categorical []string
	// ParseDates lists columns parsed as timestamps; unparseable cells become missing.
	ParseDates []string
	// MaxRows rejects input with more data rows; 0 means unlimited.
	MaxRows int
}

// DefaultLoadOptions returns the defaults used by the CLI and the HTTP service.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{DecimalSeparator: '.'}
}

// missingTokens mirrors the default NA markers of common dataframe readers.
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#NA": {}, "<NA>": {}, "#N/A N/A": {},
}

// Load reads a CSV, TSV or XLSX stream, dispatching on the filename extension.
func Load(filename string, r io.Reader, opt LoadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return LoadCSV(r, opt)
	case ".tsv":
		if opt.Delimiter == 0 {
			opt.Delimiter = '\t'
		}
		return LoadCSV(r, opt)
	case ".xlsx":
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read xlsx: %w", err)
		}
		return LoadXLSX(bytes.NewReader(b), int64(len(b)), opt)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks cannot be read, save as .xlsx", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, opt LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return Load(filepath.Base(path), f, opt)
}

// LoadCSV reads delimited text with a header row. Short rows are padded with
// missing cells.
func LoadCSV(r io.Reader, opt LoadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrParse, err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read row %d: %w", ErrParse, len(rows)+1, err)
		}
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, opt.MaxRows)
		}
		rows = append(rows, rec)
	}
	return buildTable(header, rows, opt)
}

// sniffDelimiter picks the most frequent candidate separator on the first line.
func sniffDelimiter(head []byte) rune {
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// buildTable turns header plus raw string records into typed columns.
func buildTable(header []string, rows [][]string, opt LoadOptions) (*Table, error) {
	return buildTableWithDates(header, rows, opt, nil)
}

// buildTableWithDates is buildTable with extra column positions forced to
// datetime, as when the source already marked them as dates.
func buildTableWithDates(header []string, rows [][]string, opt LoadOptions, dateCols map[int]bool) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrNoColumns
	}
	names := columnNames(header)
	categorical := nameSet(opt.Categorical)
	dates := nameSet(opt.ParseDates)

	cols := make([]Column, len(names))
	cells := make([]string, len(rows))
	valid := make([]bool, len(rows))
	for j, name := range names {
		for i, rec := range rows {
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			_, na := missingTokens[v]
			cells[i], valid[i] = v, !na
		}
		switch {
		case dates[name] || dateCols[j]:
			cols[j] = timeColumn(name, cells, valid)
		case categorical[name]:
			cols[j] = NewCategoricalColumn(name, cells, valid)
		default:
			cols[j] = inferColumn(name, cells, valid, opt)
		}
	}
	return NewTable(cols...)
}

// inferColumn tries numeric, then boolean, then falls back to text. A column
// with no present values is numeric.
func inferColumn(name string, cells []string, valid []bool, opt LoadOptions) Column {
	nums := make([]float64, len(cells))
	numeric := true
	for i, v := range cells {
		if !valid[i] {
			continue
		}
		x, ok := parseNumber(v, opt)
		if !ok {
			numeric = false
			break
		}
		nums[i] = x
	}
	if numeric {
		return NewNumericColumn(name, nums, valid)
	}
	flags := make([]bool, len(cells))
	boolean := true
	for i, v := range cells {
		if !valid[i] {
			continue
		}
		b, ok := parseBool(v)
		if !ok {
			boolean = false
			break
		}
		flags[i] = b
	}
	if boolean {
		return NewBoolColumn(name, flags, valid)
	}
	return NewTextColumn(name, cells, valid)
}

func timeColumn(name string, cells []string, valid []bool) Column {
	ts := make([]time.Time, len(cells))
	ok := make([]bool, len(cells))
	for i, v := range cells {
		if !valid[i] {
			continue
		}
		if t, err := dateparse.ParseAny(v); err == nil {
			ts[i], ok[i] = t, true
		}
	}
	return NewTimeColumn(name, ts, ok)
}

// parseNumber accepts plain decimal and scientific notation in the configured
// locale. Thousands separators are only stripped when configured.
func parseNumber(s string, opt LoadOptions) (float64, bool) {
	raw := s
	dec := opt.DecimalSeparator
	if dec == 0 {
		dec = '.'
	}
	if thou := opt.ThousandsSeparator; thou != 0 && thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		if strings.Contains(raw, ".") {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true", "True", "TRUE":
		return true, true
	case "false", "False", "FALSE":
		return false, true
	}
	return false, false
}

// columnNames fills blank headers and de-duplicates repeated ones with a
// numeric suffix.
func columnNames(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	next := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if taken[name] {
			base := name
			for n := next[base] + 1; ; n++ {
				cand := fmt.Sprintf("%s.%d", base, n)
				if !taken[cand] {
					name = cand
					next[base] = n
					break
				}
			}
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

func nameSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[strings.TrimSpace(n)] = true
	}
	return m
}
