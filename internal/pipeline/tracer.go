package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/infrastructure"
	"covidlag/internal/modeling"
	"covidlag/pkg/contracts/domain"
)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "covidlag.pipeline"

// Tracer provides OpenTelemetry instrumentation for a run
type Tracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewTracer creates a Tracer from providers. Nil providers give a no-op
// tracer.
func NewTracer(providers *infrastructure.OTelProviders) (*Tracer, error) {
	tracer := tracenoop.NewTracerProvider().Tracer(TracerName)
	meter := metricnoop.NewMeterProvider().Meter(TracerName)
	if providers != nil {
		if providers.Tracer != nil {
			tracer = providers.Tracer
		}
		if providers.Meter != nil {
			meter = providers.Meter
		}
	}

	metrics, err := infrastructure.CreatePipelineMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	return &Tracer{tracer: tracer, metrics: metrics}, nil
}

// OTelTracer returns the underlying tracer, used for per-model spans.
func (t *Tracer) OTelTracer() trace.Tracer { return t.tracer }

// TraceRun creates the root span of a run.
func (t *Tracer) TraceRun(ctx context.Context, runID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run.id", runID)),
	)
}

// TraceStage creates a span for one stage.
func (t *Tracer) TraceStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "pipeline.stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("stage.name", stage)),
	)
	return ctx, span
}

// RecordStage ends span and records the stage metrics. report may be the
// zero value for stages without row accounting.
func (t *Tracer) RecordStage(ctx context.Context, span trace.Span, stage string, duration time.Duration, report domain.StageReport, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Int("stage.rows_in", report.RowsIn),
		attribute.Int("stage.rows_out", report.RowsOut),
		attribute.Int("stage.rows_excluded", report.TotalExcluded()),
	)
	span.End()

	stageAttr := attribute.String("stage", stage)
	t.metrics.StageExecutions.Add(ctx, 1, metric.WithAttributes(stageAttr, attribute.String("status", status)))
	t.metrics.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(stageAttr))
	if report.RowsOut > 0 {
		t.metrics.RowsProcessed.Add(ctx, int64(report.RowsOut), metric.WithAttributes(stageAttr))
	}
	for reason, n := range report.Excluded {
		t.metrics.RowsExcluded.Add(ctx, int64(n), metric.WithAttributes(stageAttr, attribute.String("reason", reason)))
	}
}

// RecordFit counts a model fit by outcome.
func (t *Tracer) RecordFit(ctx context.Context, o modeling.FitOutcome) {
	outcome := "fitted"
	switch {
	case apperrors.IsType(o.Err, apperrors.ErrTypeDegenerateFit):
		outcome = "degenerate"
	case o.Failed():
		outcome = "failed"
	}
	t.metrics.ModelFits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", o.Spec.Name),
		attribute.String("outcome", outcome),
	))
}

// RecordEvaluation records the holdout RMSE of a model.
func (t *Tracer) RecordEvaluation(ctx context.Context, eval domain.ModelEvaluation) {
	t.metrics.ModelRMSE.Record(ctx, eval.GlobalRMSE, metric.WithAttributes(attribute.String("model", eval.Model)))
}

// RecordRun records the whole run duration.
func (t *Tracer) RecordRun(ctx context.Context, span trace.Span, duration time.Duration, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	span.End()
	t.metrics.RunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
