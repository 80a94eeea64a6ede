// Package reporter prints analysis results for a terminal.
package reporter

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/KaramelBytes/dataprofiler/internal/insight"
	"github.com/KaramelBytes/dataprofiler/internal/recommend"
)

type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporterTo writes to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Report prints a short summary followed by each recommendation.
func (r *ConsoleReporter) Report(filename string, s insight.Summary, recs []recommend.Recommendation) error {
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.Bold).Sprint("Dataset:"), filename)
	fmt.Fprintf(r.out, "  rows %d, columns %d, duplicates %d, memory %.2f MB\n",
		s.RowCount, s.ColumnCount, s.DuplicateRowCount, s.MemoryUsageMB)
	if cols := s.MissingColumns(); len(cols) > 0 {
		fmt.Fprintln(r.out, "  missing:")
		for _, c := range cols {
			m := s.MissingByColumn[c]
			fmt.Fprintf(r.out, "    %s: %d (%.1f%%)\n", c, m.Count, m.Percentage)
		}
	}
	fmt.Fprintln(r.out)

	if len(recs) == 0 {
		fmt.Fprintln(r.out, color.GreenString("✔ No recommendations."))
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(r.out, "[%s] %s (%s)\n", severityColor(rec.Severity).Sprint(rec.Severity), rec.Title, rec.Category)
		fmt.Fprintf(r.out, "\t%s\n", rec.Description)
		fmt.Fprintf(r.out, "\tAction: %s\n", color.CyanString(rec.Action))
		fmt.Fprintln(r.out)
	}

	counts := map[recommend.Severity]int{}
	for _, rec := range recs {
		counts[rec.Severity]++
	}
	sevs := make([]recommend.Severity, 0, len(counts))
	for sev := range counts {
		sevs = append(sevs, sev)
	}
	sort.Slice(sevs, func(i, j int) bool { return rank(sevs[i]) > rank(sevs[j]) })
	fmt.Fprintf(r.out, "%d recommendations:", len(recs))
	for _, sev := range sevs {
		fmt.Fprintf(r.out, " %s %d", severityColor(sev).Sprint(sev), counts[sev])
	}
	fmt.Fprintln(r.out)
	return nil
}

func severityColor(s recommend.Severity) *color.Color {
	switch s {
	case recommend.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case recommend.SeverityWarning:
		return color.New(color.FgYellow, color.Bold)
	case recommend.SeverityInfo:
		return color.New(color.FgBlue, color.Bold)
	case recommend.SeveritySuccess:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

func rank(s recommend.Severity) int {
	switch s {
	case recommend.SeverityCritical:
		return 3
	case recommend.SeverityWarning:
		return 2
	case recommend.SeverityInfo:
		return 1
	default:
		return 0
	}
}
