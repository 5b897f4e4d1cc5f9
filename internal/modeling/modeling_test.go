package modeling

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

func linearFrame(t *testing.T, entities []string, x1, x2, y []float64) *frame.Frame {
	t.Helper()
	start, err := frame.ParseDate("2022-01-01")
	require.NoError(t, err)
	dates := make([]time.Time, len(entities))
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	f, err := frame.New(entities, dates)
	require.NoError(t, err)
	for name, values := range map[string][]float64{"x1": x1, "x2": x2, domain.ColLaggedDeaths: y} {
		f, err = f.WithNumeric(name, values)
		require.NoError(t, err)
	}
	return f
}

func TestFitOLS_RecoversLinearCoefficients(t *testing.T) {
	x1 := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	x2 := []float64{2, 1, 4, 3, 6, 5, 9, 7}
	y := make([]float64, len(x1))
	data := make([]float64, 0, 2*len(x1))
	for i := range x1 {
		y[i] = 2*x1[i] + 3*x2[i]
		data = append(data, x1[i], x2[i])
	}

	res, err := FitOLS(mat.NewDense(len(x1), 2, data), y)
	require.NoError(t, err)

	assert.InDelta(t, 0, res.Intercept, 1e-9)
	assert.InDeltaSlice(t, []float64{2, 3}, res.Slopes, 1e-9)
	assert.InDelta(t, 1, res.RSquared, 1e-12)
	assert.Equal(t, 8, res.N)
	assert.Equal(t, 5, res.DF)
	assert.InDelta(t, 0, res.SSR, 1e-15)
	for _, r := range res.Residuals {
		assert.InDelta(t, 0, r, 1e-9)
	}
}

func TestFitOLS_Inference(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{1.1, 1.9, 3.2, 3.8, 5.1, 6.0}

	res, err := FitOLS(mat.NewDense(len(x), 1, x), y)
	require.NoError(t, err)

	assert.InDelta(t, 0.98, res.Slopes[0], 0.05)
	assert.Greater(t, res.RSquared, 0.98)
	assert.Less(t, res.AdjRSquared, res.RSquared)
	require.Len(t, res.StdErrors, 2)
	assert.Greater(t, res.StdErrors[1], 0.0)
	assert.InDelta(t, res.Slopes[0]/res.StdErrors[1], res.TStats[1], 1e-9)
	assert.Less(t, res.PValues[1], 0.001)
	assert.GreaterOrEqual(t, res.PValues[0], 0.0)
	assert.LessOrEqual(t, res.PValues[0], 1.0)
}

func TestFitOLS_ScalesMixedMagnitudes(t *testing.T) {
	// Population sized counts beside a rate.
	n := 12
	data := make([]float64, 0, 2*n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		big := 1e8 + float64(i*i)*1e6
		small := 0.01 * float64((i*7)%5+1)
		data = append(data, big, small)
		y[i] = 5 + 3e-7*big + 400*small
	}

	res, err := FitOLS(mat.NewDense(n, 2, data), y)
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Intercept, 1e-5)
	assert.InDelta(t, 3e-7, res.Slopes[0], 1e-12)
	assert.InDelta(t, 400, res.Slopes[1], 1e-5)
}

func TestFitOLS_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		rows int
		cols int
		data []float64
		y    []float64
	}{
		{"fewer rows than parameters", 2, 2, []float64{1, 2, 3, 4}, []float64{1, 2}},
		{"zero column", 4, 1, []float64{0, 0, 0, 0}, []float64{1, 2, 3, 4}},
		{"collinear columns", 4, 2, []float64{1, 2, 2, 4, 3, 6, 4, 8}, []float64{1, 2, 3, 5}},
		{"constant predictor", 4, 1, []float64{7, 7, 7, 7}, []float64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitOLS(mat.NewDense(tt.rows, tt.cols, tt.data), tt.y)
			assert.Error(t, err)
		})
	}
}

func TestFitOLS_ConstantResponse(t *testing.T) {
	res, err := FitOLS(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), []float64{5, 5, 5, 5})
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Intercept, 1e-12)
	assert.True(t, math.IsNaN(res.RSquared))
}

func TestBuildDesign_AppliesRowFilter(t *testing.T) {
	nan := math.NaN()
	f := linearFrame(t,
		[]string{"AAA", "AAA", "BBB", "BBB"},
		[]float64{1, nan, 3, 4},
		[]float64{1, 2, 3, 4},
		[]float64{1, 2, nan, 4})
	spec := domain.ModelSpec{Name: "m", Response: domain.ColLaggedDeaths, Predictors: []string{"x1", "x2"}}

	d, err := BuildDesign(f, spec)
	require.NoError(t, err)
	assert.Equal(t, 2, d.N())
	assert.Equal(t, 2, d.Excluded)
	assert.Equal(t, []int{0, 3}, d.Rows)
	assert.Equal(t, []string{"AAA", "BBB"}, d.Entities)
	assert.Equal(t, []float64{4, 4}, d.X.RawRowView(1))

	_, err = BuildDesign(f, domain.ModelSpec{Name: "m", Response: domain.ColLaggedDeaths, Predictors: []string{"nope"}})
	assert.Error(t, err)
}

func TestFitter_FitAll(t *testing.T) {
	nan := math.NaN()
	x1 := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	x2 := []float64{2, 1, 4, 3, 6, 5, 9, nan}
	y := make([]float64, len(x1))
	for i := range x1 {
		y[i] = 2*x1[i] + 3*x2[i]
	}
	y[7] = 2 * x1[7]
	entities := []string{"AAA", "AAA", "AAA", "AAA", "BBB", "BBB", "BBB", "BBB"}
	train := linearFrame(t, entities, x1, x2, y)

	fittedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fitter := NewFitter(2, nil, WithClock(func() time.Time { return fittedAt }))

	specs := []domain.ModelSpec{
		{Name: "both", Response: domain.ColLaggedDeaths, Predictors: []string{"x1", "x2"}},
		{Name: "first", Response: domain.ColLaggedDeaths, Predictors: []string{"x1"}},
		{Name: "unknown", Response: domain.ColLaggedDeaths, Predictors: []string{"missing_col"}},
		{Name: "too_wide", Response: domain.ColLaggedDeaths, Predictors: []string{"x1", "x2", "x1_sq", "x2_sq"}},
	}
	var err error
	sq := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for i := range v {
			out[i] = v[i] * v[i]
		}
		return out
	}
	train, err = train.WithNumeric("x1_sq", []float64{nan, nan, nan, nan, 25, 36, 49, 64})
	require.NoError(t, err)
	train, err = train.WithNumeric("x2_sq", sq(x2))
	require.NoError(t, err)

	outcomes, err := fitter.FitAll(context.Background(), train, specs)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	both := outcomes[0]
	require.False(t, both.Failed())
	assert.Equal(t, "both", both.Model.Spec.Name)
	assert.Equal(t, 7, both.N)
	assert.Equal(t, 1, both.Excluded, "row with missing x2 is dropped for this model only")
	assert.InDeltaSlice(t, []float64{2, 3}, both.Model.Slopes(), 1e-9)
	assert.InDelta(t, 1, both.Model.RSquared, 1e-9)
	assert.Equal(t, fittedAt, both.Model.FittedAt)
	require.Len(t, both.Model.Coefficients, 3)
	assert.True(t, both.Model.Coefficients[0].Intercept)
	assert.Equal(t, "x2", both.Model.Coefficients[2].Name)

	first := outcomes[1]
	require.False(t, first.Failed())
	assert.Equal(t, 8, first.N)
	assert.Equal(t, 0, first.Excluded)

	unknown := outcomes[2]
	require.True(t, unknown.Failed())
	assert.True(t, apperrors.IsType(unknown.Err, apperrors.ErrTypeValidation))

	tooWide := outcomes[3]
	require.True(t, tooWide.Failed())
	assert.Equal(t, 3, tooWide.N)
	assert.True(t, apperrors.IsType(tooWide.Err, apperrors.ErrTypeDegenerateFit))
	assert.ErrorIs(t, tooWide.Err, apperrors.ErrDegenerateFit)
	failure := tooWide.Failure()
	assert.Equal(t, "too_wide", failure.Model)
	assert.Equal(t, 5, failure.P)
}

func TestFitter_FitAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	train := linearFrame(t, []string{"AAA"}, []float64{1}, []float64{1}, []float64{1})
	_, err := NewFitter(1, nil).FitAll(ctx, train, []domain.ModelSpec{
		{Name: "m", Response: domain.ColLaggedDeaths, Predictors: []string{"x1"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_RowWeightedRMSE(t *testing.T) {
	var (
		entities []string
		x1, x2   []float64
		y        []float64
	)
	for i := 0; i < 10; i++ {
		entities = append(entities, "AAA")
		x1 = append(x1, float64(i))
		x2 = append(x2, 0)
		y = append(y, float64(i))
	}
	for i := 0; i < 10; i++ {
		entities = append(entities, "BBB")
		x1 = append(x1, float64(i))
		x2 = append(x2, 0)
		y = append(y, float64(i)+5)
	}
	holdout := linearFrame(t, entities, x1, x2, y)
	population := make([]float64, len(entities))
	location := make([]string, len(entities))
	for i, e := range entities {
		population[i] = map[string]float64{"AAA": 1e6, "BBB": 5e7}[e]
		location[i] = "Land " + e
	}
	var err error
	holdout, err = holdout.WithNumeric(domain.ColPopulation, population)
	require.NoError(t, err)
	holdout, err = holdout.WithText(domain.ColLocation, location)
	require.NoError(t, err)

	model := &domain.FittedModel{
		Spec: domain.ModelSpec{Name: "identity", Response: domain.ColLaggedDeaths, Predictors: []string{"x1"}},
		Coefficients: []domain.Coefficient{
			{Name: "(intercept)", Estimate: 0, Intercept: true},
			{Name: "x1", Estimate: 1},
		},
	}

	eval, err := NewEvaluator(nil).Evaluate(context.Background(), model, holdout)
	require.NoError(t, err)

	assert.Equal(t, 20, eval.N)
	assert.InDelta(t, math.Sqrt(12.5), eval.GlobalRMSE, 1e-12)
	require.Len(t, eval.PerEntity, 2)
	assert.Equal(t, "BBB", eval.PerEntity[0].Entity, "largest population first")
	assert.InDelta(t, 5, eval.PerEntity[0].RMSE, 1e-12)
	assert.Equal(t, "Land BBB", eval.PerEntity[0].Location)
	assert.Equal(t, "AAA", eval.PerEntity[1].Entity)
	assert.InDelta(t, 0, eval.PerEntity[1].RMSE, 1e-12)
	assert.Equal(t, 10, eval.PerEntity[1].N)
	assert.NotEqual(t, 2.5, eval.GlobalRMSE, "not the mean of entity RMSEs")
}

func TestEvaluate_NoCompleteRows(t *testing.T) {
	nan := math.NaN()
	holdout := linearFrame(t, []string{"AAA"}, []float64{nan}, []float64{1}, []float64{1})
	model := &domain.FittedModel{
		Spec:         domain.ModelSpec{Name: "m", Response: domain.ColLaggedDeaths, Predictors: []string{"x1"}},
		Coefficients: []domain.Coefficient{{Intercept: true}, {Name: "x1", Estimate: 1}},
	}

	eval, err := NewEvaluator(nil).Evaluate(context.Background(), model, holdout)
	require.NoError(t, err)
	assert.Equal(t, 0, eval.N)
	assert.Equal(t, 1, eval.Excluded)
	assert.True(t, math.IsNaN(eval.GlobalRMSE))
	assert.Empty(t, eval.PerEntity)
}

func TestSortByPopulation(t *testing.T) {
	rows := []domain.EntityRMSE{
		{Entity: "CCC", Population: math.NaN()},
		{Entity: "BBB", Population: 10},
		{Entity: "AAA", Population: 10},
		{Entity: "DDD", Population: 99},
	}
	SortByPopulation(rows)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Entity
	}
	assert.Equal(t, []string{"DDD", "AAA", "BBB", "CCC"}, got)
}

func TestRankAndTopN(t *testing.T) {
	evals := []domain.ModelEvaluation{
		{Model: "a", GlobalRMSE: 3},
		{Model: "b", GlobalRMSE: math.NaN()},
		{Model: "c", GlobalRMSE: 1},
		{Model: "d", GlobalRMSE: 2},
	}

	ranked := Rank(evals)
	names := make([]string, len(ranked))
	for i, e := range ranked {
		names[i] = e.Model
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, names)
	assert.Equal(t, "a", evals[0].Model, "input untouched")

	top := TopN(evals, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].Model)
	assert.Equal(t, "d", top[1].Model)
	assert.Len(t, TopN(evals, 10), 4)
}
