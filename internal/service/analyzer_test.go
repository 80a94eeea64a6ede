package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
	"github.com/KaramelBytes/dataprofiler/internal/insight"
	"github.com/KaramelBytes/dataprofiler/internal/recommend"
	"github.com/KaramelBytes/dataprofiler/internal/report"
)

const goodCSV = "id,name,score\n1,a,10\n2,b,20\n3,c,30\n"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeRenderer struct{ titles []string }

func (r *fakeRenderer) Render(_ context.Context, title string, t *dataset.Table) ([]byte, error) {
	r.titles = append(r.titles, title)
	return []byte("<html>" + title + "</html>"), nil
}

type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	fail    error
}

func (f *fakeArtifacts) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return "http://minio.local/reports-bucket/" + key, nil
}

func (f *fakeArtifacts) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

type panicRule struct{}

func (panicRule) Name() string { return "panic" }
func (panicRule) Evaluate(*dataset.Table, insight.Summary) []recommend.Recommendation {
	panic("index out of range")
}

func newTestAnalyzer(t *testing.T) (*Analyzer, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	a := New(report.NewMemoryStore(), r)
	a.Clock = fixedClock{t: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)}
	return a, r
}

func TestAnalyze_Success(t *testing.T) {
	a, r := newTestAnalyzer(t)
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	a.Tracer = tp.Tracer("test")
	art := &fakeArtifacts{}
	a.Artifacts = art

	ctx := context.Background()
	rec, err := a.Analyze(ctx, "scores.csv", strings.NewReader(goodCSV))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.ID, "20240203_040506_scores_csv_"), rec.ID)
	assert.Equal(t, "scores.csv", rec.Filename)
	assert.Equal(t, 3, rec.Summary.RowCount)
	assert.Equal(t, 3, rec.Summary.ColumnCount)
	require.NotEmpty(t, rec.Recommendations)
	assert.Equal(t, recommend.SeveritySuccess, rec.Recommendations[0].Severity)
	assert.Equal(t, []string{"Profiling Report - scores.csv"}, r.titles)
	assert.Equal(t, "http://minio.local/reports-bucket/reports/"+rec.ID+".html", rec.ArtifactURL)
	assert.Equal(t, rec.HTML, art.objects["reports/"+rec.ID+".html"])

	stored, err := a.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, stored)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"heuristics", "render", "analyze"}, names)
}

func TestAnalyze_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		maxRows  int
		want     error
	}{
		{name: "bad extension", filename: "notes.txt", body: goodCSV, want: ErrInvalidFileType},
		{name: "no extension", filename: "data", body: goodCSV, want: ErrInvalidFileType},
		{name: "empty file", filename: "empty.csv", body: "", want: ErrEmptyTable},
		{name: "header only", filename: "header.csv", body: "a,b\n", want: ErrEmptyTable},
		{name: "too many rows", filename: "big.csv", body: goodCSV, maxRows: 2, want: dataset.ErrTooManyRows},
		{name: "legacy excel", filename: "old.xls", body: "\xd0\xcf\x11\xe0", want: dataset.ErrUnsupportedFormat},
		{name: "corrupt workbook", filename: "bad.xlsx", body: "not a zip", want: dataset.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAnalyzer(t)
			if tt.maxRows > 0 {
				a.MaxRows = tt.maxRows
			}
			rec, err := a.Analyze(context.Background(), tt.filename, strings.NewReader(tt.body))
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsInputError(err))

			list, lerr := a.List(context.Background())
			require.NoError(t, lerr)
			assert.Empty(t, list)
		})
	}
}

func TestAnalyze_ExactlyMaxRowsAccepted(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	a.MaxRows = 3
	_, err := a.Analyze(context.Background(), "ok.csv", strings.NewReader(goodCSV))
	assert.NoError(t, err)
}

func TestAnalyze_RecoversRulePanic(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a, _ := newTestAnalyzer(t)
	a.Logger = zap.New(core)
	a.Engine = recommend.NewEngine()
	a.Engine.Register(panicRule{})

	_, err := a.Analyze(context.Background(), "boom.csv", strings.NewReader(goodCSV))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisDefect)
	assert.False(t, IsInputError(err))
	assert.Equal(t, 1, logs.FilterMessage("heuristics panicked").Len())

	// The analyzer keeps serving after a defect.
	a.Engine = recommend.NewEngine()
	_, err = a.Analyze(context.Background(), "fine.csv", strings.NewReader(goodCSV))
	assert.NoError(t, err)
}

func TestAnalyze_ArtifactFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a, _ := newTestAnalyzer(t)
	a.Logger = zap.New(core)
	a.Artifacts = &fakeArtifacts{fail: errors.New("connection refused")}

	rec, err := a.Analyze(context.Background(), "scores.csv", strings.NewReader(goodCSV))
	require.NoError(t, err)
	assert.Empty(t, rec.ArtifactURL)
	assert.Equal(t, 1, logs.FilterMessage("artifact upload failed").Len())
}

func TestDelete(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	art := &fakeArtifacts{}
	a.Artifacts = art
	ctx := context.Background()

	rec, err := a.Analyze(ctx, "scores.csv", strings.NewReader(goodCSV))
	require.NoError(t, err)
	require.NoError(t, a.Delete(ctx, rec.ID))
	assert.Equal(t, []string{"reports/" + rec.ID + ".html"}, art.removed)

	_, err = a.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, report.ErrNotFound)
	assert.ErrorIs(t, a.Delete(ctx, rec.ID), report.ErrNotFound)
}

func TestAnalyze_Concurrent(t *testing.T) {
	a := New(report.NewMemoryStore(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Analyze(context.Background(), "scores.csv", strings.NewReader(goodCSV))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	list, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 8)
}

func TestAnalyzeTable(t *testing.T) {
	a, r := newTestAnalyzer(t)
	a.MaxRows = 2
	tbl, err := dataset.NewTable(
		dataset.NewNumericColumn("x", []float64{1, 2}, nil),
		dataset.NewTextColumn("y", []string{"a", "a"}, nil),
	)
	require.NoError(t, err)

	rec, err := a.AnalyzeTable(context.Background(), "inline.csv", tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Summary.RowCount)
	assert.Equal(t, []string{"Profiling Report - inline.csv"}, r.titles)

	big, err := dataset.NewTable(dataset.NewNumericColumn("x", []float64{1, 2, 3}, nil))
	require.NoError(t, err)
	_, err = a.AnalyzeTable(context.Background(), "big.csv", big)
	assert.ErrorIs(t, err, dataset.ErrTooManyRows)

	assert.Equal(t, 2, a.LoadOptions().MaxRows)
	assert.Equal(t, '.', a.LoadOptions().DecimalSeparator)
}
