package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/KaramelBytes/dataprofiler"

// Instruments holds pre-created OTel metric instruments for the analysis pipeline.
type Instruments struct {
	AnalysisCount    metric.Int64Counter
	AnalysisErrors   metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	RowsAnalyzed     metric.Int64Counter
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return NewInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return NewInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

// NewInstrumentsFromMeter builds the instrument set on an explicit meter.
func NewInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	count, _ := meter.Int64Counter("dataprofiler.analysis.count",
		metric.WithDescription("Total number of dataset analyses"),
	)
	errs, _ := meter.Int64Counter("dataprofiler.analysis.errors",
		metric.WithDescription("Total number of failed dataset analyses"),
	)
	duration, _ := meter.Float64Histogram("dataprofiler.analysis.duration",
		metric.WithDescription("Dataset analysis duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	rows, _ := meter.Int64Counter("dataprofiler.analysis.rows",
		metric.WithDescription("Total number of rows analyzed"),
	)
	return &Instruments{
		AnalysisCount:    count,
		AnalysisErrors:   errs,
		AnalysisDuration: duration,
		RowsAnalyzed:     rows,
	}
}

// RecordAnalysis counts one finished analysis of the given format.
func (i *Instruments) RecordAnalysis(ctx context.Context, format string, rows int, ms float64) {
	attrs := metric.WithAttributes(attribute.String("format", format))
	i.AnalysisCount.Add(ctx, 1, attrs)
	i.RowsAnalyzed.Add(ctx, int64(rows), attrs)
	i.AnalysisDuration.Record(ctx, ms, attrs)
}

// IncrementErrors counts one failed analysis tagged with a failure reason.
func (i *Instruments) IncrementErrors(ctx context.Context, reason string) {
	i.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
