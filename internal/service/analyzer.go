// Package service runs the load, extract, recommend and render pipeline and
// keeps the results in a report store.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
	"github.com/KaramelBytes/dataprofiler/internal/insight"
	"github.com/KaramelBytes/dataprofiler/internal/recommend"
	"github.com/KaramelBytes/dataprofiler/internal/report"
	"github.com/KaramelBytes/dataprofiler/internal/storage"
	"github.com/KaramelBytes/dataprofiler/internal/telemetry"
)

// DefaultMaxRows is the row ceiling applied when Analyzer.MaxRows is zero.
const DefaultMaxRows = 1_000_000

var (
	ErrInvalidFileType = errors.New("invalid file type, upload a CSV or Excel file")
	ErrEmptyTable      = errors.New("file is empty")
	ErrAnalysisDefect  = errors.New("analysis failed unexpectedly")
)

var allowedExt = map[string]bool{".csv": true, ".tsv": true, ".xlsx": true, ".xls": true}

// Renderer turns a table into a visual report document.
type Renderer interface {
	Render(ctx context.Context, title string, t *dataset.Table) ([]byte, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Analyzer is safe for concurrent use as long as its Store is.
type Analyzer struct {
	Store     report.Store
	Renderer  Renderer
	Artifacts storage.ArtifactStore // optional
	Engine    *recommend.Engine
	Clock     Clock
	Logger    *zap.Logger
	Tracer    trace.Tracer
	Metrics   *telemetry.Instruments
	Load      dataset.LoadOptions
	MaxRows   int
}

// New wires an Analyzer with no-op observability and the default rule set.
func New(store report.Store, renderer Renderer) *Analyzer {
	return &Analyzer{
		Store:    store,
		Renderer: renderer,
		Engine:   recommend.NewEngine(),
		Clock:    SystemClock{},
		Logger:   zap.NewNop(),
		Tracer:   telemetry.NoopTracer(),
		Metrics:  telemetry.NoopInstruments(),
		Load:     dataset.DefaultLoadOptions(),
		MaxRows:  DefaultMaxRows,
	}
}

// Analyze loads body as filename, runs the heuristics, renders the report and
// stores the result.
func (a *Analyzer) Analyze(ctx context.Context, filename string, body io.Reader) (rec *report.Record, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ctx, span := a.startSpan(ctx, filename)
	defer func() { a.finish(ctx, span, filename, err) }()

	if !allowedExt[ext] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileType, filename)
	}
	opt := a.loadOptions()
	t, err := dataset.Load(filename, body, opt)
	if err != nil {
		if errors.Is(err, dataset.ErrNoColumns) {
			return nil, fmt.Errorf("%w or corrupted", ErrEmptyTable)
		}
		if errors.Is(err, dataset.ErrTooManyRows) {
			return nil, fmt.Errorf("file too large, maximum %d rows supported: %w", opt.MaxRows, err)
		}
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	return a.process(ctx, span, filename, t)
}

// AnalyzeTable runs the pipeline on an already loaded table.
func (a *Analyzer) AnalyzeTable(ctx context.Context, filename string, t *dataset.Table) (rec *report.Record, err error) {
	ctx, span := a.startSpan(ctx, filename)
	defer func() { a.finish(ctx, span, filename, err) }()
	return a.process(ctx, span, filename, t)
}

func (a *Analyzer) startSpan(ctx context.Context, filename string) (context.Context, trace.Span) {
	return a.tracer().Start(ctx, "analyze", trace.WithAttributes(
		attribute.String("file.name", filename),
		attribute.String("file.format", format(filename)),
	))
}

func (a *Analyzer) finish(ctx context.Context, span trace.Span, filename string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics().IncrementErrors(ctx, failureReason(err))
		a.logger().Warn("analysis failed", zap.String("filename", filename), zap.Error(err))
	}
	span.End()
}

func (a *Analyzer) process(ctx context.Context, span trace.Span, filename string, t *dataset.Table) (*report.Record, error) {
	start := time.Now()
	if t.Rows() == 0 || t.NumColumns() == 0 {
		return nil, ErrEmptyTable
	}
	if limit := a.maxRows(); t.Rows() > limit {
		return nil, fmt.Errorf("file too large, maximum %d rows supported: %w", limit, dataset.ErrTooManyRows)
	}
	span.SetAttributes(attribute.Int("table.rows", t.Rows()), attribute.Int("table.columns", t.NumColumns()))

	summary, recs, err := a.heuristics(ctx, t)
	if err != nil {
		return nil, err
	}

	now := a.clock().Now()
	rec := &report.Record{
		ID:              report.NewID(now, filename),
		Filename:        filename,
		CreatedAt:       now,
		Summary:         summary,
		Recommendations: recs,
	}

	if a.Renderer != nil {
		_, rspan := a.tracer().Start(ctx, "render")
		rec.HTML, err = a.Renderer.Render(ctx, "Profiling Report - "+filename, t)
		rspan.End()
		if err != nil {
			return nil, fmt.Errorf("render report: %w", err)
		}
	}

	if a.Artifacts != nil && len(rec.HTML) > 0 {
		url, uerr := a.Artifacts.Upload(ctx, storage.ReportKey(rec.ID), "text/html; charset=utf-8", rec.HTML)
		if uerr != nil {
			a.logger().Warn("artifact upload failed", zap.String("report_id", rec.ID), zap.Error(uerr))
		} else {
			rec.ArtifactURL = url
		}
	}

	if err := a.Store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	ms := float64(time.Since(start).Microseconds()) / 1000
	a.metrics().RecordAnalysis(ctx, format(filename), t.Rows(), ms)
	a.logger().Info("analysis complete",
		zap.String("report_id", rec.ID),
		zap.String("filename", filename),
		zap.Int("rows", t.Rows()),
		zap.Int("columns", t.NumColumns()),
		zap.Int("recommendations", len(recs)),
		zap.Float64("duration_ms", ms),
	)
	return rec, nil
}

// heuristics runs extraction and the rule engine, converting a panic into
// ErrAnalysisDefect for this request only.
func (a *Analyzer) heuristics(ctx context.Context, t *dataset.Table) (s insight.Summary, recs []recommend.Recommendation, err error) {
	_, span := a.tracer().Start(ctx, "heuristics")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			a.logger().Error("heuristics panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrAnalysisDefect, r)
		}
	}()
	engine := a.Engine
	if engine == nil {
		engine = recommend.NewEngine()
	}
	s = insight.Extract(t)
	recs = engine.Recommend(t, s)
	span.SetAttributes(attribute.Int("recommendations", len(recs)))
	return s, recs, nil
}

// Get returns a stored report.
func (a *Analyzer) Get(ctx context.Context, id string) (*report.Record, error) {
	return a.Store.Get(ctx, id)
}

// List returns all stored reports oldest first.
func (a *Analyzer) List(ctx context.Context) ([]*report.Record, error) {
	return a.Store.List(ctx)
}

// Delete removes a stored report and, when configured, its artifact.
func (a *Analyzer) Delete(ctx context.Context, id string) error {
	rec, err := a.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.Store.Delete(ctx, id); err != nil {
		return err
	}
	if a.Artifacts != nil && rec.ArtifactURL != "" {
		if err := a.Artifacts.Remove(ctx, storage.ReportKey(id)); err != nil {
			a.logger().Warn("artifact removal failed", zap.String("report_id", id), zap.Error(err))
		}
	}
	return nil
}

// IsInputError reports whether err was caused by the uploaded file rather
// than by the service.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidFileType) ||
		errors.Is(err, ErrEmptyTable) ||
		errors.Is(err, dataset.ErrTooManyRows) ||
		errors.Is(err, dataset.ErrUnsupportedFormat) ||
		errors.Is(err, dataset.ErrParse)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFileType):
		return "invalid_type"
	case errors.Is(err, ErrEmptyTable):
		return "empty"
	case errors.Is(err, dataset.ErrTooManyRows):
		return "too_many_rows"
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, dataset.ErrParse):
		return "parse"
	case errors.Is(err, ErrAnalysisDefect):
		return "defect"
	default:
		return "internal"
	}
}

// LoadOptions returns the loader settings Analyze uses, with the row ceiling
// applied.
func (a *Analyzer) LoadOptions() dataset.LoadOptions { return a.loadOptions() }

func (a *Analyzer) loadOptions() dataset.LoadOptions {
	opt := a.Load
	if opt.DecimalSeparator == 0 {
		opt.DecimalSeparator = '.'
	}
	opt.MaxRows = a.maxRows()
	return opt
}

func format(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func (a *Analyzer) maxRows() int {
	if a.MaxRows > 0 {
		return a.MaxRows
	}
	return DefaultMaxRows
}

func (a *Analyzer) clock() Clock {
	if a.Clock == nil {
		return SystemClock{}
	}
	return a.Clock
}

func (a *Analyzer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Analyzer) tracer() trace.Tracer {
	if a.Tracer == nil {
		return telemetry.NoopTracer()
	}
	return a.Tracer
}

func (a *Analyzer) metrics() *telemetry.Instruments {
	if a.Metrics == nil {
		return telemetry.NoopInstruments()
	}
	return a.Metrics
}
