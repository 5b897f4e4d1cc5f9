package modeling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// FitOutcome is the result of fitting one ModelSpec. Exactly one of Model
// and Err is set.
type FitOutcome struct {
	Spec     domain.ModelSpec
	Model    *domain.FittedModel
	Err      error
	N        int
	Excluded int
	Duration time.Duration
}

// Failed reports whether the fit produced no model.
func (o FitOutcome) Failed() bool { return o.Model == nil }

// Failure describes a failed outcome for reporting.
func (o FitOutcome) Failure() domain.ModelFailure {
	return domain.ModelFailure{
		Model:  o.Spec.Name,
		Reason: o.Err.Error(),
		N:      o.N,
		P:      len(o.Spec.Predictors) + 1,
	}
}

// Fitter fits independent model specifications on a shared training frame.
type Fitter struct {
	concurrency int
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// FitterOption configures a Fitter.
type FitterOption func(*Fitter)

// WithTracer records a span per fitted model.
func WithTracer(t trace.Tracer) FitterOption {
	return func(f *Fitter) {
		if t != nil {
			f.tracer = t
		}
	}
}

// WithClock overrides the FittedAt timestamp source.
func WithClock(now func() time.Time) FitterOption {
	return func(f *Fitter) { f.now = now }
}

// NewFitter creates a Fitter running at most concurrency fits at once.
func NewFitter(concurrency int, logger *slog.Logger, opts ...FitterOption) *Fitter {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fitter{
		concurrency: concurrency,
		tracer:      noop.NewTracerProvider().Tracer("covidlag/modeling"),
		logger:      logger.With("component", "fitter"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FitAll fits every spec against train. A failing model never stops the
// others; outcomes are returned in spec order. Only cancellation of ctx is
// returned as an error.
func (f *Fitter) FitAll(ctx context.Context, train *frame.Frame, specs []domain.ModelSpec) ([]FitOutcome, error) {
	outcomes := make([]FitOutcome, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = f.Fit(gctx, train, spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Fit fits a single spec.
func (f *Fitter) Fit(ctx context.Context, train *frame.Frame, spec domain.ModelSpec) FitOutcome {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "modeling.fit",
		trace.WithAttributes(
			attribute.String("model.name", spec.Name),
			attribute.Int("model.predictors", len(spec.Predictors)),
		),
	)
	defer span.End()

	out := f.fit(train, spec)
	out.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("model.rows", out.N),
		attribute.Int("model.excluded", out.Excluded),
	)
	if out.Excluded > 0 {
		f.logger.DebugContext(ctx, "training rows excluded",
			"error", apperrors.NewMissingPredictorError(spec.Name, out.Excluded))
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		f.logger.WarnContext(ctx, "model fit failed",
			"model", spec.Name,
			"rows", out.N,
			"excluded", out.Excluded,
			"error", out.Err,
		)
		return out
	}

	span.SetAttributes(attribute.Float64("model.r_squared", out.Model.RSquared))
	f.logger.InfoContext(ctx, "model fitted",
		"model", spec.Name,
		"rows", out.N,
		"excluded", out.Excluded,
		"r_squared", out.Model.RSquared,
		"duration", out.Duration,
	)
	return out
}

func (f *Fitter) fit(train *frame.Frame, spec domain.ModelSpec) FitOutcome {
	out := FitOutcome{Spec: spec}

	design, err := BuildDesign(train, spec)
	if err != nil {
		out.Err = apperrors.NewAppValidationError(err.Error()).WithContext("model", spec.Name)
		return out
	}
	out.N = design.N()
	out.Excluded = design.Excluded
	if design.N() == 0 {
		out.Err = apperrors.NewDegenerateFitError(spec.Name, "no complete rows")
		return out
	}

	res, err := FitOLS(design.X, design.Y)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, errSingular) || design.N() < len(spec.Predictors)+1 {
			out.Err = apperrors.NewDegenerateFitError(spec.Name, reason)
		} else {
			out.Err = apperrors.NewAppValidationError(reason).WithContext("model", spec.Name)
		}
		return out
	}

	out.Model = newFittedModel(spec, res, design.Excluded, f.now().UTC())
	return out
}

func newFittedModel(spec domain.ModelSpec, res *OLSResult, excluded int, at time.Time) *domain.FittedModel {
	coefs := make([]domain.Coefficient, 0, len(spec.Predictors)+1)
	coefs = append(coefs, domain.Coefficient{
		Name:      "(intercept)",
		Estimate:  res.Intercept,
		StdError:  res.StdErrors[0],
		TStat:     res.TStats[0],
		PValue:    res.PValues[0],
		Intercept: true,
	})
	for j, name := range spec.Predictors {
		coefs = append(coefs, domain.Coefficient{
			Name:     name,
			Estimate: res.Slopes[j],
			StdError: res.StdErrors[j+1],
			TStat:    res.TStats[j+1],
			PValue:   res.PValues[j+1],
		})
	}
	return &domain.FittedModel{
		Spec:         spec,
		Intercept:    res.Intercept,
		Coefficients: coefs,
		N:            res.N,
		RSquared:     res.RSquared,
		AdjRSquared:  res.AdjRSquared,
		Residuals:    residualStats(res),
		Excluded:     excluded,
		FittedAt:     at,
	}
}
