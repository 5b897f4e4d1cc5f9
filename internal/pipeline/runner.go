package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"covidlag/internal/config"
	"covidlag/internal/dataprocessing"
	apperrors "covidlag/internal/errors"
	"covidlag/internal/exporter"
	"covidlag/internal/frame"
	"covidlag/internal/infrastructure"
	"covidlag/internal/modeling"
	"covidlag/internal/validation"
	"covidlag/pkg/contracts/domain"
)

// Options are the per-invocation switches of a run.
type Options struct {
	// ObservationsPath overrides the configured observation file. An
	// overridden path is never downloaded.
	ObservationsPath string
	// PopulationPath overrides the configured population file.
	PopulationPath string
	// Refresh downloads the observation file even when a local copy exists.
	Refresh bool
	// NoPlots skips the scatter plots.
	NoPlots bool
}

// Result is what a completed run produced.
type Result struct {
	RunID      string
	Results    *exporter.Results
	Manifest   *RunManifest
	Exclusions *Exclusions
	Outputs    []string
}

// Runner executes the pipeline stages in order.
type Runner struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
	fetcher   *dataprocessing.Fetcher
	stdout    io.Writer
	now       func() time.Time
	newID     func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProviders instruments the run with the given OpenTelemetry providers
// and writes their metrics textfile at the end of the run.
func WithProviders(p *infrastructure.OTelProviders) RunnerOption {
	return func(r *Runner) { r.providers = p }
}

// WithFetcher replaces the HTTP fetcher used for the observation file.
func WithFetcher(f *dataprocessing.Fetcher) RunnerOption {
	return func(r *Runner) { r.fetcher = f }
}

// WithStdout sets where the console report is printed.
func WithStdout(w io.Writer) RunnerOption {
	return func(r *Runner) { r.stdout = w }
}

// WithRunClock overrides the clock used for stage and manifest timestamps.
func WithRunClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRunID fixes the run ID instead of generating a UUID.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.newID = func() string { return id } }
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg *config.Config, paths *config.Paths, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:    cfg,
		paths:  paths,
		logger: infrastructure.WithComponent(logger, "pipeline"),
		stdout: os.Stdout,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = dataprocessing.NewFetcher(nil, cfg.Sources.FetchTimeout, logger)
	}
	return r
}

// run carries the state of one Run call.
type run struct {
	*Runner
	id         string
	logger     *slog.Logger
	tracer     *Tracer
	manifest   *RunManifest
	exclusions *Exclusions
	validator  *validation.FileValidator
	stages     []*StageState
}

// Run executes every stage, writes the reports and the run manifest, and
// prints the console summary. A load, reshape or coercion failure aborts the
// run; failing models are reported and do not.
func (r *Runner) Run(ctx context.Context, opts Options) (result *Result, err error) {
	start := r.now()
	id := r.newID()
	ctx = infrastructure.WithRunID(ctx, id)

	tracer, err := NewTracer(r.providers)
	if err != nil {
		return nil, err
	}
	rn := &run{
		Runner:     r,
		id:         id,
		logger:     r.logger,
		tracer:     tracer,
		manifest:   NewRunManifest(id, start, r.cfg),
		exclusions: NewExclusions(),
		validator:  validation.NewFileValidator(r.logger),
	}

	ctx, span := tracer.TraceRun(ctx, id)
	defer func() {
		tracer.RecordRun(ctx, span, r.now().Sub(start), err)
		if ferr := rn.finish(err); ferr != nil && err == nil {
			err = ferr
		}
	}()

	if err := r.paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewStorageError("failed to create directories", err)
	}
	if err := rn.validator.ValidateOutputDirectory(r.paths.ReportsDir); err != nil {
		return nil, err
	}
	rn.logger.InfoContext(ctx, "run started", "models", len(r.cfg.Models))

	res, err := rn.execute(ctx, opts)
	if err != nil {
		rn.logger.ErrorContext(ctx, "run failed", "error", err)
		return nil, err
	}

	rn.logger.InfoContext(ctx, "run completed",
		"duration", r.now().Sub(start).String(),
		"excluded_rows", rn.exclusions.Total(),
		"outputs", len(rn.manifest.Outputs))
	return &Result{
		RunID:      id,
		Results:    res,
		Manifest:   rn.manifest,
		Exclusions: rn.exclusions,
		Outputs:    rn.manifest.Outputs,
	}, nil
}

func (rn *run) execute(ctx context.Context, opts Options) (*exporter.Results, error) {
	cfg := rn.cfg
	w, err := cfg.Pipeline.Windows()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid pipeline dates", err)
	}

	var obs *frame.Frame
	err = rn.stage(ctx, StageLoadObservations, func(ctx context.Context) (domain.StageReport, error) {
		path, err := rn.observationsPath(ctx, opts)
		if err != nil {
			return domain.StageReport{}, err
		}
		if err := rn.validator.ValidateSource(dataprocessing.SourceObservations, path); err != nil {
			return domain.StageReport{}, err
		}
		obs, err = dataprocessing.LoadObservationsFile(ctx, path, rn.logger)
		if err != nil {
			return domain.StageReport{}, err
		}
		rn.digest(ctx, dataprocessing.SourceObservations, path)
		report := domain.NewStageReport(StageLoadObservations, obs.Len())
		report.RowsOut = obs.Len()
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	var records []domain.PopulationRecord
	err = rn.stage(ctx, StageLoadPopulation, func(ctx context.Context) (domain.StageReport, error) {
		path := opts.PopulationPath
		if path == "" {
			path = rn.paths.GetDataPath(cfg.Sources.PopulationFile)
		}
		if err := rn.validator.ValidateSource(dataprocessing.SourcePopulation, path); err != nil {
			return domain.StageReport{}, err
		}
		var err error
		records, err = dataprocessing.LoadPopulationFile(ctx, path, cfg.Sources.PopulationYearColumn, cfg.Sources.PopulationSheet, rn.logger)
		if err != nil {
			return domain.StageReport{}, err
		}
		rn.digest(ctx, dataprocessing.SourcePopulation, path)
		report := domain.NewStageReport(StageLoadPopulation, len(records))
		report.RowsOut = len(records)
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	var cleaned, lagged, merged, features *frame.Frame
	var table *domain.PopulationTable
	var parts dataprocessing.Partitions

	steps := []struct {
		name string
		fn   func(ctx context.Context) (domain.StageReport, error)
	}{
		{StageClean, func(ctx context.Context) (domain.StageReport, error) {
			var report domain.StageReport
			cleaned, report = dataprocessing.Clean(ctx, obs, dataprocessing.CleanOptions{
				EntityCodeLength: cfg.Pipeline.EntityCodeLength,
				MinPopulation:    cfg.Pipeline.MinPopulation,
			}, rn.logger)
			return report, nil
		}},
		{StageLagJoin, func(ctx context.Context) (domain.StageReport, error) {
			lagOpts := dataprocessing.DefaultLagJoinOptions()
			lagOpts.Days = cfg.Pipeline.LagDays
			var report domain.StageReport
			var err error
			lagged, report, err = dataprocessing.LagJoin(ctx, cleaned, lagOpts, rn.logger)
			return report, err
		}},
		{StageReshape, func(ctx context.Context) (domain.StageReport, error) {
			var report domain.StageReport
			table, report = dataprocessing.ReshapePopulation(ctx, records, rn.logger)
			return report, nil
		}},
		{StageMerge, func(ctx context.Context) (domain.StageReport, error) {
			var report domain.StageReport
			var err error
			merged, report, err = dataprocessing.MergePopulation(ctx, lagged, table, rn.logger)
			return report, err
		}},
		{StageFeatures, func(ctx context.Context) (domain.StageReport, error) {
			var report domain.StageReport
			var err error
			features, report, err = dataprocessing.DeriveFeatures(ctx, merged, FeatureSeries(cfg.Pipeline.Series), rn.logger)
			return report, err
		}},
		{StageSplit, func(ctx context.Context) (domain.StageReport, error) {
			var report domain.StageReport
			var err error
			parts, report, err = dataprocessing.Split(ctx, features,
				dataprocessing.Window{From: w.TrainFrom, To: w.TrainTo},
				dataprocessing.Window{From: w.HoldoutFrom, To: w.HoldoutTo},
				rn.logger)
			return report, err
		}},
	}
	for _, s := range steps {
		if err := rn.stage(ctx, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	var outcomes []modeling.FitOutcome
	err = rn.stage(ctx, StageFit, func(ctx context.Context) (domain.StageReport, error) {
		fitter := modeling.NewFitter(cfg.Pipeline.FitConcurrency, rn.logger,
			modeling.WithTracer(rn.tracer.OTelTracer()),
			modeling.WithClock(rn.now))
		var err error
		outcomes, err = fitter.FitAll(ctx, parts.Train, cfg.Models)
		if err != nil {
			return domain.StageReport{}, err
		}
		report := domain.NewStageReport(StageFit, parts.Train.Len())
		for _, o := range outcomes {
			rn.tracer.RecordFit(ctx, o)
			rn.exclusions.Add(StageFit+"/"+o.Spec.Name, domain.ReasonMissingPredictor, o.Excluded)
			if !o.Failed() {
				report.RowsOut++
			}
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	evals := make(map[string]*domain.ModelEvaluation)
	var ranked []domain.ModelEvaluation
	err = rn.stage(ctx, StageEvaluate, func(ctx context.Context) (domain.StageReport, error) {
		evaluator := modeling.NewEvaluator(rn.logger)
		report := domain.NewStageReport(StageEvaluate, parts.Holdout.Len())
		var all []domain.ModelEvaluation
		for _, o := range outcomes {
			if o.Failed() {
				continue
			}
			eval, err := evaluator.Evaluate(ctx, o.Model, parts.Holdout)
			if err != nil {
				return report, err
			}
			rn.tracer.RecordEvaluation(ctx, eval)
			rn.exclusions.Add(StageEvaluate+"/"+eval.Model, domain.ReasonMissingPredictor, eval.Excluded)
			all = append(all, eval)
			report.RowsOut++
		}
		ranked = modeling.Rank(all)
		for i := range ranked {
			evals[ranked[i].Model] = &ranked[i]
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	var snapshot *frame.Frame
	err = rn.stage(ctx, StageSnapshot, func(ctx context.Context) (domain.StageReport, error) {
		snapshot = Snapshot(features, w.Snapshot)
		report := domain.NewStageReport(StageSnapshot, features.Len())
		report.RowsOut = snapshot.Len()
		if snapshot.Len() == 0 {
			rn.logger.WarnContext(ctx, "snapshot date has no rows", "date", w.Snapshot.Format(frame.DateLayout))
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	res := rn.results(outcomes, ranked, evals, parts, snapshot, w.Snapshot)
	for _, m := range res.Models {
		rn.manifest.AddModel(modelRecord(m, outcomes))
	}

	err = rn.stage(ctx, StageExport, func(ctx context.Context) (domain.StageReport, error) {
		return domain.NewStageReport(StageExport, 0), rn.export(ctx, res, opts)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// stage runs fn as the named stage: it tracks the StageState, the span and
// the metrics, and adds the reported exclusions to the run totals.
func (rn *run) stage(ctx context.Context, name string, fn func(ctx context.Context) (domain.StageReport, error)) error {
	state := NewStageState(name)
	rn.stages = append(rn.stages, state)

	ctx = infrastructure.WithStage(ctx, name)
	ctx, span := rn.tracer.TraceStage(ctx, name)
	started := rn.now()
	state.Start(started)

	report, err := fn(ctx)
	if report.Stage == "" {
		report.Stage = name
	}
	ended := rn.now()
	rn.tracer.RecordStage(ctx, span, name, ended.Sub(started), report, err)
	if err != nil {
		state.Fail(ended, err)
		return err
	}
	state.Complete(ended, report)
	rn.exclusions.AddReport(report)

	rn.logger.DebugContext(ctx, "stage completed",
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"excluded", report.TotalExcluded(),
		"duration", ended.Sub(started).String())
	return nil
}

// observationsPath returns the local observation file, downloading it first
// when it is missing or a refresh was requested.
func (rn *run) observationsPath(ctx context.Context, opts Options) (string, error) {
	if opts.ObservationsPath != "" {
		return opts.ObservationsPath, nil
	}
	path := rn.paths.GetDataPath(rn.cfg.Sources.ObservationsFile)
	if config.FileExists(path) && !opts.Refresh {
		rn.logger.InfoContext(ctx, "using cached observations", "path", path)
		infrastructure.AddSpanEvent(ctx, "observations.cached", attribute.String("path", path))
		return path, nil
	}
	url := rn.cfg.Sources.ObservationsURL
	if url == "" {
		return "", apperrors.NewLoadError(dataprocessing.SourceObservations,
			fmt.Errorf("%s not found and no observations_url configured", path))
	}
	n, err := rn.fetcher.Download(ctx, url, path)
	if err != nil {
		return "", err
	}
	infrastructure.AddSpanEvent(ctx, "observations.downloaded",
		attribute.String("path", path), attribute.Int64("bytes", n))
	return path, nil
}

func (rn *run) digest(ctx context.Context, name, path string) {
	d, err := DigestFile(name, path)
	if err != nil {
		rn.logger.WarnContext(ctx, "failed to digest source", "source", name, "error", err)
		return
	}
	rn.manifest.AddSource(d)
}

func (rn *run) results(outcomes []modeling.FitOutcome, ranked []domain.ModelEvaluation, evals map[string]*domain.ModelEvaluation,
	parts dataprocessing.Partitions, snapshot *frame.Frame, snapshotDate time.Time) *exporter.Results {
	rank := make(map[string]int, len(ranked))
	for i, e := range ranked {
		rank[e.Model] = i + 1
	}

	res := &exporter.Results{
		RunID:        rn.id,
		GeneratedAt:  rn.now(),
		TrainRows:    parts.Train.Len(),
		HoldoutRows:  parts.Holdout.Len(),
		SnapshotDate: snapshotDate,
		Snapshot:     snapshot,
	}
	for _, o := range outcomes {
		m := exporter.ModelResult{Spec: o.Spec, Model: o.Model, Rank: rank[o.Spec.Name]}
		if o.Failed() {
			failure := o.Failure()
			m.Failure = &failure
		} else {
			m.Evaluation = evals[o.Spec.Name]
		}
		res.Models = append(res.Models, m)
	}
	for _, e := range modeling.TopN(ranked, rn.cfg.Report.TopModels) {
		res.TopModels = append(res.TopModels, e.Model)
	}
	for _, pair := range rn.cfg.Report.ScatterPlots {
		x, y, err := config.ParseScatter(pair)
		if err != nil {
			continue
		}
		res.Scatters = append(res.Scatters, exporter.Scatter{X: x, Y: y})
	}
	return res
}

// export writes every enabled report and prints the console summary.
func (rn *run) export(ctx context.Context, res *exporter.Results, opts Options) error {
	report := rn.cfg.Report
	logger := rn.logger.With("run_id", rn.id)
	if report.WriteCSV {
		written, err := exporter.NewReportExporter(rn.paths, logger).ExportCSV(res)
		rn.manifest.AddOutputs(written...)
		if err != nil {
			return err
		}
	}
	if report.WriteXLSX {
		path, err := exporter.NewWorkbookExporter(rn.paths, logger).Export(res)
		if err != nil {
			return err
		}
		rn.manifest.AddOutputs(path)
	}
	if report.WritePlots && !opts.NoPlots {
		written, err := exporter.NewPlotExporter(rn.paths, logger).Export(res)
		rn.manifest.AddOutputs(written...)
		if err != nil {
			return err
		}
	}
	if err := exporter.NewConsoleReport(rn.stdout, report.Color).Print(res); err != nil {
		rn.logger.WarnContext(ctx, "failed to print console report", "error", err)
	}
	return nil
}

// finish closes and saves the manifest and writes the metrics textfile.
func (rn *run) finish(runErr error) error {
	manifestPath := rn.paths.GetReportPath(config.RunManifestJSON)
	rn.manifest.Finish(rn.now(), rn.stages, rn.exclusions, runErr)
	if err := rn.manifest.SaveToFile(manifestPath); err != nil {
		return apperrors.NewStorageError("failed to write run manifest", err).WithContext("path", manifestPath)
	}

	tel := rn.cfg.Telemetry
	if rn.providers != nil && tel.MetricsEnabled && tel.MetricsTextfile != "" {
		path := rn.paths.GetReportPath(tel.MetricsTextfile)
		if err := rn.providers.WriteMetricsTextfile(path); err != nil {
			return apperrors.NewStorageError("failed to write metrics textfile", err).WithContext("path", path)
		}
	}
	return nil
}

// FeatureSeries maps the configured series codes onto the feature deriver.
func FeatureSeries(s config.SeriesConfig) dataprocessing.FeatureSeries {
	return dataprocessing.FeatureSeries{
		Pop80Female:     s.Pop80Female,
		Pop80Male:       s.Pop80Male,
		UrbanShare:      s.UrbanShare,
		DependencyRatio: s.DependencyRatio,
	}
}

// Snapshot returns the rows of f dated day.
func Snapshot(f *frame.Frame, day time.Time) *frame.Frame {
	want := frame.DayNumber(day)
	return f.Filter(func(i int) bool { return frame.DayNumber(f.Date(i)) == want })
}

func modelRecord(m exporter.ModelResult, outcomes []modeling.FitOutcome) ModelRecord {
	r := ModelRecord{Name: m.Spec.Name, Status: m.Status(), Rank: m.Rank}
	for _, o := range outcomes {
		if o.Spec.Name == m.Spec.Name {
			r.N = o.N
			r.Excluded = o.Excluded
			r.FitDuration = o.Duration.String()
		}
	}
	if m.Model != nil {
		r.RSquared = finite(m.Model.RSquared)
	}
	if m.Failure != nil {
		r.Failure = m.Failure.Reason
	}
	if m.Evaluation != nil {
		r.HoldoutN = m.Evaluation.N
		r.GlobalRMSE = finite(m.Evaluation.GlobalRMSE)
	}
	return r
}
