package profile

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
)

func fixtureTable(t *testing.T) *dataset.Table {
	t.Helper()
	score := []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50, 10.1}
	double := make([]float64, len(score))
	for i, v := range score {
		double[i] = v * 2
	}
	tbl, err := dataset.NewTable(
		dataset.NewTextColumn("Group", []string{"A", "A", "A", "B", "B", "B", "A", "B", "A", "B"}, nil),
		dataset.NewNumericColumn("Score", score, nil),
		dataset.NewNumericColumn("Concentration (g/L)", double, nil),
		dataset.NewBoolColumn("Flag", []bool{true, false, true, true, false, true, true, true, false, true}, nil),
		dataset.NewTextColumn("Note", []string{"a|b", "x", "", "", "", "", "", "", "", ""},
			[]bool{true, true, false, false, false, false, false, false, false, false}),
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestBuildStatistics(t *testing.T) {
	p := Build("data.csv", fixtureTable(t), DefaultOptions())
	if p.Rows != 10 || len(p.Cols) != 5 {
		t.Fatalf("shape = %dx%d", p.Rows, len(p.Cols))
	}
	score := p.Cols[1]
	if score.Min != 8.8 || score.Max != 50 {
		t.Fatalf("score range = [%v, %v]", score.Min, score.Max)
	}
	if !almostEqual(score.Mean, 13.96, 1e-9) {
		t.Fatalf("score mean = %v, want 13.96", score.Mean)
	}
	if score.OutliersCount != 1 || score.OutlierThreshold != 3.5 {
		t.Fatalf("outliers = %d thr=%v, want 1 above 3.5", score.OutliersCount, score.OutlierThreshold)
	}
	if p.Cols[2].Unit != "g/L" {
		t.Fatalf("unit = %q, want g/L", p.Cols[2].Unit)
	}
	if !almostEqual(p.Cols[3].TrueRatio, 0.7, 1e-9) {
		t.Fatalf("true ratio = %v", p.Cols[3].TrueRatio)
	}
	group := p.Cols[0]
	if len(group.TopValues) != 2 || group.TopValues[0].Count != 5 || group.TopValues[0].Value != "A" {
		t.Fatalf("top values = %#v", group.TopValues)
	}
	if p.Corr == nil || !almostEqual(p.Corr.Values[0][1], 1, 1e-9) {
		t.Fatalf("correlation of Score and its double should be 1: %#v", p.Corr)
	}
	if len(p.Samples) != 5 {
		t.Fatalf("samples = %d, want 5", len(p.Samples))
	}
}

func TestMarkdown(t *testing.T) {
	md := Build("data.csv", fixtureTable(t), DefaultOptions()).Markdown()
	for _, want := range []string{
		"File: data.csv",
		"Rows: 10",
		"- Score: numeric (non-null 10, missing 0.0%)",
		"- Note: text (non-null 2, missing 80.0%)",
		"[CORRELATIONS]",
		"- Score ~ Concentration (g/L): r=1.000",
		"| Group | Score |",
		"a/b",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	r := NewHTMLRenderer()
	r.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	out, err := r.Render(context.Background(), "Profiling Report - <data>.csv", fixtureTable(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := string(out)
	for _, want := range []string{
		"<title>Profiling Report - &lt;data&gt;.csv</title>",
		"Generated 2024-03-01 12:00:00 UTC",
		"<h2>Correlations</h2>",
		"Missing cells</th><td>8 (16.0%)",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
	if strings.Contains(html, "<data>") {
		t.Fatalf("title must be escaped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, "x", fixtureTable(t)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestMedianMADAndQuantile(t *testing.T) {
	median, mad := medianMAD([]float64{1, 2, 3, 4, 100})
	if median != 3 || mad != 1 {
		t.Fatalf("median=%v mad=%v, want 3 and 1", median, mad)
	}
	if q := quantile([]float64{0, 10}, 0.25); q != 2.5 {
		t.Fatalf("quantile = %v, want 2.5", q)
	}
}

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
