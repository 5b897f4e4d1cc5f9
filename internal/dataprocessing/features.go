package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// StageFeatures is the report name of the feature derivation stage.
const StageFeatures = "derive_features"

// FeatureSeries names the population series consumed as numbers.
type FeatureSeries struct {
	Pop80Female     string
	Pop80Male       string
	UrbanShare      string
	DependencyRatio string
}

// missingMarkers are the population cells that mean "no value".
var missingMarkers = map[string]struct{}{
	"":   {},
	"..": {},
}

// CoerceSeries parses a raw population value. Empty cells and the ".."
// placeholder are missing; anything else that is not a number is an error.
func CoerceSeries(entity, series, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if _, missing := missingMarkers[s]; missing {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), apperrors.NewTypeCoercionError(entity, series, raw, err)
	}
	return v, nil
}

// coerceColumn converts a text series column. Every entity carries one value
// per series, so parsing is cached by raw text.
func coerceColumn(f *frame.Frame, series string) ([]float64, error) {
	out := make([]float64, f.Len())
	text, ok := f.Text(series)
	if !ok {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}
	cache := make(map[string]float64)
	for i, raw := range text {
		if v, hit := cache[raw]; hit {
			out[i] = v
			continue
		}
		v, err := CoerceSeries(f.Entity(i), series, raw)
		if err != nil {
			return nil, err
		}
		cache[raw] = v
		out[i] = v
	}
	return out, nil
}

// DeriveFeatures appends the derived predictor columns. Source columns are
// left untouched and a missing input yields a missing output. A population
// value that is neither numeric nor a missing marker aborts the stage.
func DeriveFeatures(ctx context.Context, in *frame.Frame, series FeatureSeries, logger *slog.Logger) (*frame.Frame, domain.StageReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.NewStageReport(StageFeatures, in.Len())
	n := in.Len()

	col := func(name string) []float64 {
		if v, ok := in.Numeric(name); ok {
			return v
		}
		nan := make([]float64, n)
		for i := range nan {
			nan[i] = math.NaN()
		}
		return nan
	}
	population := col(domain.ColPopulation)
	cardio := col(domain.ColCardiovascDeathRate)
	reproduction := col(domain.ColReproductionRate)
	tests := col(domain.ColNewTestsSmoothed)
	positive := col(domain.ColPositiveRate)
	female := col(domain.ColFemaleSmokers)
	male := col(domain.ColMaleSmokers)

	urban, err := coerceColumn(in, series.UrbanShare)
	if err != nil {
		return nil, report, err
	}
	pop80F, err := coerceColumn(in, series.Pop80Female)
	if err != nil {
		return nil, report, err
	}
	pop80M, err := coerceColumn(in, series.Pop80Male)
	if err != nil {
		return nil, report, err
	}
	dependency, err := coerceColumn(in, series.DependencyRatio)
	if err != nil {
		return nil, report, err
	}

	derived := []struct {
		name  string
		value func(i int) float64
	}{
		{domain.ColTotalCardiovascDeaths, func(i int) float64 { return cardio[i] / 100000 * population[i] }},
		{domain.ColTotalReproduction, func(i int) float64 { return reproduction[i] / 100000 * population[i] }},
		{domain.ColNewPositiveTestsSmoothed, func(i int) float64 { return tests[i] * positive[i] }},
		{domain.ColTotalSmokers, func(i int) float64 { return (female[i] + male[i]) / 2 / 100 * population[i] }},
		{domain.ColTotalUrbanPopulation, func(i int) float64 { return urban[i] / 100 * population[i] }},
		{domain.ColTotalPopulationOver80, func(i int) float64 { return pop80F[i] + pop80M[i] }},
		{domain.ColAgeDependencyRatio, func(i int) float64 { return dependency[i] }},
	}

	out := in
	missing := make(map[string]int, len(derived))
	for _, d := range derived {
		values := make([]float64, n)
		for i := range values {
			values[i] = d.value(i)
			if math.IsNaN(values[i]) {
				missing[d.name]++
			}
		}
		if out, err = out.WithNumeric(d.name, values); err != nil {
			return nil, report, err
		}
	}
	report.RowsOut = out.Len()

	logger.InfoContext(ctx, "features derived",
		"rows", n,
		"features", len(derived),
		"missing", missing,
	)
	return out, report, nil
}
