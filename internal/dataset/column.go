package dataset

import (
	"math"
	"strconv"
	"time"
)

// Kind is the elementary type tag of a loaded column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindBoolean     Kind = "boolean"
	KindDatetime    Kind = "datetime"
	KindText        Kind = "text"
	KindCategorical Kind = "categorical"
)

// Column is a named, immutable sequence of nullable values of a single kind.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	IsMissing(i int) bool
	// Value returns the cell value, or nil when missing. Concrete types are
	// float64, bool, time.Time and string.
	Value(i int) any
	// Key returns a canonical representation of the cell used for
	// distinctness and row equality. Missing cells share one key.
	Key(i int) string
	// DistinctCount is the number of distinct non-missing values.
	DistinctCount() int
	MissingCount() int
	// MemoryBytes estimates the deep in-memory footprint of the column.
	MemoryBytes() int64
}

// Numeric is implemented by columns with an ordered float64 domain.
type Numeric interface {
	Column
	Float(i int) float64
	// Min and Max report ok=false when every value is missing.
	Min() (float64, bool)
	Max() (float64, bool)
}

const (
	missingKey = "\x00NA"

	pointerBytes   = 8
	strObjectBytes = 49 // boxed string header, ASCII payload follows
	nanObjectBytes = 24 // boxed float used for missing text cells
)

// base carries the name and validity mask shared by every column type.
type base struct {
	name     string
	valid    []bool
	missing  int
	distinct int
}

func newBase(name string, valid []bool) base {
	b := base{name: name, valid: valid}
	for _, ok := range valid {
		if !ok {
			b.missing++
		}
	}
	return b
}

func (b *base) Name() string         { return b.name }
func (b *base) Len() int             { return len(b.valid) }
func (b *base) IsMissing(i int) bool { return !b.valid[i] }
func (b *base) MissingCount() int    { return b.missing }
func (b *base) DistinctCount() int   { return b.distinct }

// countDistinct fills b.distinct from the keys of the non-missing cells.
func (b *base) countDistinct(key func(i int) string) {
	seen := make(map[string]struct{})
	for i, ok := range b.valid {
		if ok {
			seen[key(i)] = struct{}{}
		}
	}
	b.distinct = len(seen)
}

// allValid returns a mask of n true values.
func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// NumericColumn holds integer or floating point values.
type NumericColumn struct {
	base
	values   []float64
	min, max float64
	hasRange bool
}

// NewNumericColumn builds a numeric column. A nil valid mask marks every value
// present; NaN values are always treated as missing.
func NewNumericColumn(name string, values []float64, valid []bool) *NumericColumn {
	if valid == nil {
		valid = allValid(len(values))
	}
	mask := make([]bool, len(values))
	copy(mask, valid)
	vals := make([]float64, len(values))
	copy(vals, values)
	for i, v := range vals {
		if math.IsNaN(v) {
			mask[i] = false
		}
	}
	c := &NumericColumn{base: newBase(name, mask), values: vals, min: math.Inf(1), max: math.Inf(-1)}
	for i, ok := range mask {
		if !ok {
			continue
		}
		c.hasRange = true
		if vals[i] < c.min {
			c.min = vals[i]
		}
		if vals[i] > c.max {
			c.max = vals[i]
		}
	}
	c.countDistinct(c.Key)
	return c
}

func (c *NumericColumn) Kind() Kind { return KindNumeric }

func (c *NumericColumn) Value(i int) any {
	if !c.valid[i] {
		return nil
	}
	return c.values[i]
}

func (c *NumericColumn) Float(i int) float64 {
	if !c.valid[i] {
		return math.NaN()
	}
	return c.values[i]
}

func (c *NumericColumn) Key(i int) string {
	if !c.valid[i] {
		return missingKey
	}
	v := c.values[i]
	if v == 0 {
		v = 0 // -0 and 0 are the same value
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (c *NumericColumn) Min() (float64, bool) { return c.min, c.hasRange }
func (c *NumericColumn) Max() (float64, bool) { return c.max, c.hasRange }

func (c *NumericColumn) MemoryBytes() int64 { return int64(len(c.values)) * 8 }

// BoolColumn holds true/false flags.
type BoolColumn struct {
	base
	values []bool
}

func NewBoolColumn(name string, values []bool, valid []bool) *BoolColumn {
	if valid == nil {
		valid = allValid(len(values))
	}
	c := &BoolColumn{base: newBase(name, append([]bool(nil), valid...)), values: append([]bool(nil), values...)}
	c.countDistinct(c.Key)
	return c
}

func (c *BoolColumn) Kind() Kind { return KindBoolean }

func (c *BoolColumn) Value(i int) any {
	if !c.valid[i] {
		return nil
	}
	return c.values[i]
}

func (c *BoolColumn) Key(i int) string {
	if !c.valid[i] {
		return missingKey
	}
	return strconv.FormatBool(c.values[i])
}

func (c *BoolColumn) MemoryBytes() int64 { return int64(len(c.values)) }

// TimeColumn holds timestamps.
type TimeColumn struct {
	base
	values   []time.Time
	min, max time.Time
}

func NewTimeColumn(name string, values []time.Time, valid []bool) *TimeColumn {
	if valid == nil {
		valid = allValid(len(values))
	}
	c := &TimeColumn{base: newBase(name, append([]bool(nil), valid...)), values: append([]time.Time(nil), values...)}
	first := true
	for i, ok := range c.valid {
		if !ok {
			continue
		}
		t := c.values[i]
		if first || t.Before(c.min) {
			c.min = t
		}
		if first || t.After(c.max) {
			c.max = t
		}
		first = false
	}
	c.countDistinct(c.Key)
	return c
}

func (c *TimeColumn) Kind() Kind { return KindDatetime }

func (c *TimeColumn) Value(i int) any {
	if !c.valid[i] {
		return nil
	}
	return c.values[i]
}

func (c *TimeColumn) Key(i int) string {
	if !c.valid[i] {
		return missingKey
	}
	return c.values[i].UTC().Format(time.RFC3339Nano)
}

// Earliest and Latest report ok=false when every value is missing.
func (c *TimeColumn) Earliest() (time.Time, bool) { return c.min, c.distinct > 0 }
func (c *TimeColumn) Latest() (time.Time, bool)   { return c.max, c.distinct > 0 }

func (c *TimeColumn) MemoryBytes() int64 { return int64(len(c.values)) * 8 }

// TextColumn holds free-form strings.
type TextColumn struct {
	base
	values []string
}

func NewTextColumn(name string, values []string, valid []bool) *TextColumn {
	if valid == nil {
		valid = allValid(len(values))
	}
	c := &TextColumn{base: newBase(name, append([]bool(nil), valid...)), values: append([]string(nil), values...)}
	c.countDistinct(c.Key)
	return c
}

func (c *TextColumn) Kind() Kind { return KindText }

func (c *TextColumn) Value(i int) any {
	if !c.valid[i] {
		return nil
	}
	return c.values[i]
}

func (c *TextColumn) Key(i int) string {
	if !c.valid[i] {
		return missingKey
	}
	return c.values[i]
}

// MemoryBytes counts a pointer per cell plus each boxed string at its actual
// byte length.
func (c *TextColumn) MemoryBytes() int64 {
	var n int64
	for i, v := range c.values {
		n += pointerBytes
		if c.valid[i] {
			n += strObjectBytes + int64(len(v))
		} else {
			n += nanObjectBytes
		}
	}
	return n
}

// CategoricalColumn stores values as codes into a category list.
type CategoricalColumn struct {
	base
	codes      []int
	categories []string
}

// NewCategoricalColumn dictionary-encodes values in first-seen order.
func NewCategoricalColumn(name string, values []string, valid []bool) *CategoricalColumn {
	if valid == nil {
		valid = allValid(len(values))
	}
	c := &CategoricalColumn{base: newBase(name, append([]bool(nil), valid...)), codes: make([]int, len(values))}
	index := make(map[string]int)
	for i, v := range values {
		if !c.valid[i] {
			c.codes[i] = -1
			continue
		}
		code, ok := index[v]
		if !ok {
			code = len(c.categories)
			index[v] = code
			c.categories = append(c.categories, v)
		}
		c.codes[i] = code
	}
	c.distinct = len(c.categories)
	return c
}

func (c *CategoricalColumn) Kind() Kind { return KindCategorical }

func (c *CategoricalColumn) Value(i int) any {
	if !c.valid[i] {
		return nil
	}
	return c.categories[c.codes[i]]
}

func (c *CategoricalColumn) Key(i int) string {
	if !c.valid[i] {
		return missingKey
	}
	return c.categories[c.codes[i]]
}

// Categories returns the distinct values in first-seen order.
func (c *CategoricalColumn) Categories() []string {
	return append([]string(nil), c.categories...)
}

// MemoryBytes uses the narrowest code width for the category count plus the
// deep size of the category strings.
func (c *CategoricalColumn) MemoryBytes() int64 {
	width := int64(1)
	switch {
	case len(c.categories) >= 1<<15:
		width = 4
	case len(c.categories) >= 1<<7:
		width = 2
	}
	n := int64(len(c.codes)) * width
	for _, s := range c.categories {
		n += pointerBytes + strObjectBytes + int64(len(s))
	}
	return n
}
