package recommend

import (
	"fmt"
	"math"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
	"github.com/KaramelBytes/dataprofiler/internal/insight"
)

const (
	highMissingPct     = 50.0
	moderateMissingPct = 10.0
	duplicateWarnPct   = 10.0
	lowCardinality     = 0.05
	highCardinality    = 0.95
	dateSampleSize     = 10
	largeMemoryMB      = 100.0
	scaleRatio         = 100.0
	goodAvgMissingPct  = 5.0
)

// MissingData buckets columns with missing values into critical (>50%),
// warning (10-50%] and info (0-10%].
type MissingData struct{}

func (MissingData) Name() string { return "missing_data" }

func (MissingData) Evaluate(_ *dataset.Table, s insight.Summary) []Recommendation {
	var high, moderate, low []string
	for _, name := range s.MissingColumns() {
		m := s.MissingByColumn[name]
		label := fmt.Sprintf("%s (%.1f%%)", name, m.Percentage)
		switch {
		case m.Percentage > highMissingPct:
			high = append(high, label)
		case m.Percentage > moderateMissingPct:
			moderate = append(moderate, label)
		case m.Percentage > 0:
			low = append(low, label)
		}
	}
	var out []Recommendation
	if len(high) > 0 {
		out = append(out, Recommendation{
			Severity:    SeverityCritical,
			Category:    "Missing Data",
			Title:       "High Missing Data",
			Description: fmt.Sprintf("Columns %s have >50%% missing values. Consider dropping these columns or investigating data collection issues.", strings.Join(high, ", ")),
			Action:      "Review data collection process or remove columns",
		})
	}
	if len(moderate) > 0 {
		out = append(out, Recommendation{
			Severity:    SeverityWarning,
			Category:    "Missing Data",
			Title:       "Moderate Missing Data",
			Description: fmt.Sprintf("Columns %s have 10-50%% missing values. Consider imputation strategies (mean, median, mode, or model-based).", strings.Join(moderate, ", ")),
			Action:      "Apply an appropriate imputation technique",
		})
	}
	if len(low) > 0 {
		out = append(out, Recommendation{
			Severity:    SeverityInfo,
			Category:    "Missing Data",
			Title:       "Low Missing Data",
			Description: fmt.Sprintf("Columns %s have up to 10%% missing values. Simple imputation or row removal may be appropriate.", strings.Join(low, ", ")),
			Action:      "Use simple imputation or drop affected rows",
		})
	}
	return out
}

// DuplicateRows reports repeated rows, escalating above 10%.
type DuplicateRows struct{}

func (DuplicateRows) Name() string { return "duplicate_rows" }

func (DuplicateRows) Evaluate(_ *dataset.Table, s insight.Summary) []Recommendation {
	if s.DuplicateRowCount == 0 || s.RowCount == 0 {
		return nil
	}
	pct := float64(s.DuplicateRowCount) / float64(s.RowCount) * 100
	if pct > duplicateWarnPct {
		return []Recommendation{{
			Severity:    SeverityWarning,
			Category:    "Data Quality",
			Title:       "Significant Duplicate Rows",
			Description: fmt.Sprintf("Found %d duplicate rows (%.1f%%). This may indicate data collection issues.", s.DuplicateRowCount, pct),
			Action:      "Investigate and remove duplicate rows",
		}}
	}
	return []Recommendation{{
		Severity:    SeverityInfo,
		Category:    "Data Quality",
		Title:       "Duplicate Rows Detected",
		Description: fmt.Sprintf("Found %d duplicate rows (%.1f%%).", s.DuplicateRowCount, pct),
		Action:      "Consider removing duplicates if they are not intentional",
	}}
}

// CategoricalCandidates flags text columns whose distinct values are fewer
// than 5% of the rows.
type CategoricalCandidates struct{}

func (CategoricalCandidates) Name() string { return "categorical_candidates" }

func (CategoricalCandidates) Evaluate(t *dataset.Table, _ insight.Summary) []Recommendation {
	rows := t.Rows()
	var flagged []string
	for _, c := range textColumns(t) {
		n := uniqueWithMissing(c)
		if float64(n) < float64(rows)*lowCardinality {
			flagged = append(flagged, fmt.Sprintf("%s (%d unique, %.1f%%)", c.Name(), n, pctOf(n, rows)))
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	return []Recommendation{{
		Severity:    SeverityInfo,
		Category:    "Optimization",
		Title:       "Categorical Encoding Opportunity",
		Description: fmt.Sprintf("Columns %s have low cardinality. Convert them to a categorical type for memory efficiency.", strings.Join(flagged, ", ")),
		Action:      "Load these columns as categories or apply label/one-hot encoding",
	}}
}

// DateLikeText flags text columns whose first non-missing values all parse as
// dates.
type DateLikeText struct{}

func (DateLikeText) Name() string { return "date_like_text" }

func (DateLikeText) Evaluate(t *dataset.Table, _ insight.Summary) []Recommendation {
	var flagged []string
	for _, c := range textColumns(t) {
		if looksLikeDates(c) {
			flagged = append(flagged, c.Name())
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	return []Recommendation{{
		Severity:    SeverityInfo,
		Category:    "Data Type",
		Title:       "Potential Date Columns",
		Description: fmt.Sprintf("Columns %s appear to contain dates but are stored as text.", strings.Join(flagged, ", ")),
		Action:      "Convert these columns to a datetime type",
	}}
}

// looksLikeDates samples up to dateSampleSize non-missing values. A column
// with nothing to sample never qualifies.
func looksLikeDates(c dataset.Column) bool {
	sampled := 0
	for i := 0; i < c.Len() && sampled < dateSampleSize; i++ {
		if c.IsMissing(i) {
			continue
		}
		sampled++
		s, ok := c.Value(i).(string)
		if !ok || !parsesAsDate(s) {
			return false
		}
	}
	return sampled > 0
}

// parsesAsDate treats any parser failure, including a panic, as a negative.
func parsesAsDate(s string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := dateparse.ParseAny(s)
	return err == nil
}

// MemoryFootprint reports tables estimated above 100 MB.
type MemoryFootprint struct{}

func (MemoryFootprint) Name() string { return "memory_footprint" }

func (MemoryFootprint) Evaluate(_ *dataset.Table, s insight.Summary) []Recommendation {
	if s.MemoryUsageMB <= largeMemoryMB {
		return nil
	}
	return []Recommendation{{
		Severity:    SeverityInfo,
		Category:    "Optimization",
		Title:       "Large Memory Usage",
		Description: fmt.Sprintf("Dataset uses %.2f MB of memory. Consider optimization techniques.", s.MemoryUsageMB),
		Action:      "Use narrower numeric types and categorical columns, and process very large datasets in chunks",
	}}
}

// HighCardinality flags text columns that are more than 95% unique.
type HighCardinality struct{}

func (HighCardinality) Name() string { return "high_cardinality" }

func (HighCardinality) Evaluate(t *dataset.Table, _ insight.Summary) []Recommendation {
	rows := t.Rows()
	if rows == 0 {
		return nil
	}
	var flagged []string
	for _, c := range textColumns(t) {
		n := uniqueWithMissing(c)
		if float64(n)/float64(rows) > highCardinality {
			flagged = append(flagged, fmt.Sprintf("%s (%.1f%% unique)", c.Name(), pctOf(n, rows)))
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	return []Recommendation{{
		Severity:    SeverityInfo,
		Category:    "Feature Engineering",
		Title:       "High Cardinality Columns",
		Description: fmt.Sprintf("Columns %s have very high cardinality (>95%% unique values). These might be IDs or require special handling.", strings.Join(flagged, ", ")),
		Action:      "Consider feature hashing, target encoding, or removing them if they are identifiers",
	}}
}

// ConstantColumns flags columns of any kind with at most one distinct
// non-missing value.
type ConstantColumns struct{}

func (ConstantColumns) Name() string { return "constant_columns" }

func (ConstantColumns) Evaluate(t *dataset.Table, _ insight.Summary) []Recommendation {
	flagged := constantColumns(t)
	if len(flagged) == 0 {
		return nil
	}
	return []Recommendation{{
		Severity:    SeverityWarning,
		Category:    "Feature Engineering",
		Title:       "Constant Columns Detected",
		Description: fmt.Sprintf("Columns %s have at most one unique value. These provide no information for analysis.", strings.Join(flagged, ", ")),
		Action:      "Drop these columns as they do not contribute to analysis",
	}}
}

func constantColumns(t *dataset.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if c.DistinctCount() <= 1 {
			out = append(out, c.Name())
		}
	}
	return out
}

// ScaleDisparity fires when the widest numeric range is more than 100 times
// the narrowest. Zero and undefined ranges are ignored; fewer than two
// remaining ranges never fire.
type ScaleDisparity struct{}

func (ScaleDisparity) Name() string { return "scale_disparity" }

func (ScaleDisparity) Evaluate(t *dataset.Table, _ insight.Summary) []Recommendation {
	n := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	var narrowest, widest string
	for _, c := range t.Columns() {
		num, ok := c.(dataset.Numeric)
		if !ok || c.Kind() != dataset.KindNumeric {
			continue
		}
		minV, ok := num.Min()
		maxV, _ := num.Max()
		if !ok {
			continue
		}
		r := maxV - minV
		if r == 0 || math.IsNaN(r) {
			continue
		}
		n++
		if r < lo {
			lo, narrowest = r, c.Name()
		}
		if r > hi {
			hi, widest = r, c.Name()
		}
	}
	if n < 2 || hi/lo <= scaleRatio {
		return nil
	}
	return []Recommendation{{
		Severity:    SeverityInfo,
		Category:    "Preprocessing",
		Title:       "Feature Scaling Recommended",
		Description: fmt.Sprintf("Numeric columns have very different scales (range of %s is %.4g, range of %s is %.4g). This can affect some machine learning algorithms.", widest, hi, narrowest, lo),
		Action:      "Apply standardization or min-max scaling before modeling",
	}}
}

// QualityGate emits a single success record when average missingness over
// affected columns is below 5%, there are no duplicates and no constant
// columns. The engine places it first.
type QualityGate struct{}

func (QualityGate) Name() string { return "quality_gate" }

func (QualityGate) Evaluate(t *dataset.Table, s insight.Summary) []Recommendation {
	if avgMissingPct(s) >= goodAvgMissingPct || s.DuplicateRowCount != 0 || len(constantColumns(t)) > 0 {
		return nil
	}
	return []Recommendation{{
		Severity:    SeveritySuccess,
		Category:    "Overall Quality",
		Title:       "Good Data Quality",
		Description: "Your dataset has minimal issues. It's relatively clean and ready for analysis.",
		Action:      "Proceed with exploratory data analysis and modeling",
	}}
}

// avgMissingPct averages only over columns that have missing values.
func avgMissingPct(s insight.Summary) float64 {
	if len(s.MissingByColumn) == 0 {
		return 0
	}
	var sum float64
	for _, name := range s.MissingColumns() {
		sum += s.MissingByColumn[name].Percentage
	}
	return sum / float64(len(s.MissingByColumn))
}

func textColumns(t *dataset.Table) []dataset.Column {
	var out []dataset.Column
	for _, c := range t.Columns() {
		if c.Kind() == dataset.KindText {
			out = append(out, c)
		}
	}
	return out
}

// uniqueWithMissing counts missing as one extra distinct value.
func uniqueWithMissing(c dataset.Column) int {
	n := c.DistinctCount()
	if c.MissingCount() > 0 {
		n++
	}
	return n
}

func pctOf(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
