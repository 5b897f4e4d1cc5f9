package dataprocessing

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := frame.ParseDate(s)
	require.NoError(t, err)
	return d
}

// buildFrame assembles a frame from parallel slices and named numeric columns.
func buildFrame(t *testing.T, entities []string, dates []time.Time, numeric map[string][]float64) *frame.Frame {
	t.Helper()
	f, err := frame.New(entities, dates)
	require.NoError(t, err)
	for name, values := range numeric {
		f, err = f.WithNumeric(name, values)
		require.NoError(t, err)
	}
	return f
}

// toySeries builds entities over consecutive days starting 2022-01-01 with
// deaths(entity, day) = base[entity] * day, day counted from 1.
func toySeries(t *testing.T, days int, base map[string]float64, order []string) *frame.Frame {
	t.Helper()
	start := mustDate(t, "2022-01-01")
	var (
		entities []string
		dates    []time.Time
		deaths   []float64
	)
	for _, e := range order {
		for d := 1; d <= days; d++ {
			entities = append(entities, e)
			dates = append(dates, start.AddDate(0, 0, d-1))
			deaths = append(deaths, base[e]*float64(d))
		}
	}
	return buildFrame(t, entities, dates, map[string][]float64{domain.ColNewDeathsSmoothed: deaths})
}

func TestClean(t *testing.T) {
	d1 := mustDate(t, "2022-03-01")
	d2 := mustDate(t, "2022-03-02")
	in := buildFrame(t,
		[]string{"AAA", "OWID_WRL", "BBB", "CCC", "AAA", "AAA", "DDD"},
		[]time.Time{d1, d1, d1, d1, d2, d2, d1},
		map[string][]float64{
			domain.ColPopulation:        {2e6, 8e9, 5e5, math.NaN(), 2e6, 2e6, 1e6},
			domain.ColNewDeathsSmoothed: {1, 2, 3, 4, 5, 6, 7},
		})

	out, report := Clean(context.Background(), in, CleanOptions{EntityCodeLength: 3, MinPopulation: 1e6}, nil)

	require.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"AAA", "DDD"}, out.DistinctEntities())
	for i := 0; i < out.Len(); i++ {
		assert.Len(t, out.Entity(i), 3)
		assert.GreaterOrEqual(t, out.Value(domain.ColPopulation, i), 1e6)
	}
	// The first of the two AAA 2022-03-02 rows survives.
	assert.Equal(t, 5.0, out.Value(domain.ColNewDeathsSmoothed, 1))

	assert.Equal(t, 7, report.RowsIn)
	assert.Equal(t, 3, report.RowsOut)
	assert.Equal(t, map[string]int{
		domain.ReasonEntityCode:           1,
		domain.ReasonPopulationThreshold:  2,
		domain.ReasonDuplicateObservation: 1,
	}, report.Excluded)
	assert.Equal(t, report.RowsIn-report.RowsOut, report.TotalExcluded())
}

func TestLagJoin_ToySeries(t *testing.T) {
	order := []string{"AAA", "BBB", "CCC"}
	in := toySeries(t, 30, map[string]float64{"AAA": 10, "BBB": 100, "CCC": 1000}, order)

	out, report, err := LagJoin(context.Background(), in, DefaultLagJoinOptions(), nil)
	require.NoError(t, err)

	// Days 17 through 30 have no record 14 days later.
	assert.Equal(t, 3*16, out.Len())
	assert.Equal(t, 3*14, report.Excluded[domain.ReasonLagJoinMiss])

	lagged, ok := out.Numeric(domain.ColLaggedDeaths)
	require.True(t, ok)
	for i := 0; i < out.Len(); i++ {
		want := in.Value(domain.ColNewDeathsSmoothed, 0)
		for j := 0; j < in.Len(); j++ {
			if in.Entity(j) == out.Entity(i) && in.Date(j).Equal(out.Date(i).AddDate(0, 0, 14)) {
				want = in.Value(domain.ColNewDeathsSmoothed, j)
			}
		}
		assert.Equal(t, want, lagged[i], "%s %s", out.Entity(i), out.Date(i).Format(frame.DateLayout))
	}

	// AAA day 1 carries the deaths recorded on AAA day 15.
	assert.Equal(t, "AAA", out.Entity(0))
	assert.Equal(t, mustDate(t, "2022-01-01"), out.Date(0))
	assert.Equal(t, 10.0, out.Value(domain.ColNewDeathsSmoothed, 0))
	assert.Equal(t, 150.0, lagged[0])
	// Source columns are untouched.
	assert.False(t, in.HasColumn(domain.ColLaggedDeaths))
}

func TestLagJoin_GapsAreNotFilled(t *testing.T) {
	d := func(s string) time.Time { return mustDate(t, s) }
	in := buildFrame(t,
		[]string{"AAA", "AAA", "AAA", "BBB", "BBB"},
		[]time.Time{d("2022-01-01"), d("2022-01-15"), d("2022-01-02"), d("2022-01-01"), d("2022-01-16")},
		map[string][]float64{domain.ColNewDeathsSmoothed: {1, math.NaN(), 3, 4, 5}})

	out, report, err := LagJoin(context.Background(), in, DefaultLagJoinOptions(), nil)
	require.NoError(t, err)

	// Only AAA 2022-01-01 finds a record 14 days later, and its value is missing.
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "AAA", out.Entity(0))
	assert.True(t, math.IsNaN(out.Value(domain.ColLaggedDeaths, 0)))
	assert.Equal(t, 4, report.Excluded[domain.ReasonLagJoinMiss])
}

func TestLagJoin_MissingSourceColumn(t *testing.T) {
	in := buildFrame(t, []string{"AAA"}, []time.Time{mustDate(t, "2022-01-01")}, nil)
	_, _, err := LagJoin(context.Background(), in, DefaultLagJoinOptions(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func populationRecords() []domain.PopulationRecord {
	rec := func(code, series, value string) domain.PopulationRecord {
		return domain.PopulationRecord{CountryName: "Name " + code, CountryCode: code, SeriesName: "desc", SeriesCode: series, Value: value}
	}
	return []domain.PopulationRecord{
		rec("AAA", "SP.POP.80UP.FE", "100"),
		rec("AAA", "SP.POP.80UP.MA", "50"),
		rec("AAA", "SP.URB.TOTL.IN.ZS", "40"),
		rec("BBB", "SP.POP.80UP.FE", ".."),
		rec("BBB", "SP.URB.TOTL.IN.ZS", "75.5"),
		rec("AAA", "SP.POP.80UP.FE", "999"),
	}
}

func TestReshapePopulation(t *testing.T) {
	table, report := ReshapePopulation(context.Background(), populationRecords(), nil)

	assert.Equal(t, []string{"AAA", "BBB"}, table.Entities)
	assert.Equal(t, []string{"SP.POP.80UP.FE", "SP.POP.80UP.MA", "SP.URB.TOTL.IN.ZS"}, table.Series)
	assert.Equal(t, 1, table.Duplicates)
	assert.Equal(t, "Name AAA", table.Names["AAA"])

	v, ok := table.Lookup("AAA", "SP.POP.80UP.FE")
	require.True(t, ok)
	assert.Equal(t, "100", v, "first occurrence wins")

	_, ok = table.Lookup("BBB", "SP.POP.80UP.MA")
	assert.False(t, ok)

	assert.Equal(t, 6, report.RowsIn)
	assert.Equal(t, 2, report.RowsOut)
	assert.Equal(t, 1, report.Excluded[domain.ReasonDuplicateSeries])
}

func TestMergePopulation(t *testing.T) {
	day := mustDate(t, "2022-06-01")
	in := buildFrame(t,
		[]string{"AAA", "BBB", "ZZZ"},
		[]time.Time{day, day, day},
		map[string][]float64{domain.ColPopulation: {1e7, 2e7, 3e7}})
	table, _ := ReshapePopulation(context.Background(), populationRecords(), nil)

	out, report, err := MergePopulation(context.Background(), in, table, nil)
	require.NoError(t, err)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"AAA", "BBB"}, out.DistinctEntities())
	assert.Equal(t, "50", out.String("SP.POP.80UP.MA", 0))
	assert.Equal(t, "", out.String("SP.POP.80UP.MA", 1))
	assert.Equal(t, "75.5", out.String("SP.URB.TOTL.IN.ZS", 1))
	assert.Equal(t, 1, report.Excluded[domain.ReasonPopulationJoinMiss])
}

func defaultSeries() FeatureSeries {
	return FeatureSeries{
		Pop80Female:     "SP.POP.80UP.FE",
		Pop80Male:       "SP.POP.80UP.MA",
		UrbanShare:      "SP.URB.TOTL.IN.ZS",
		DependencyRatio: "SP.POP.DPND",
	}
}

func TestDeriveFeatures(t *testing.T) {
	day := mustDate(t, "2022-06-01")
	in := buildFrame(t,
		[]string{"AAA", "BBB"},
		[]time.Time{day, day},
		map[string][]float64{
			domain.ColPopulation:          {1e6, 2e6},
			domain.ColCardiovascDeathRate: {200, math.NaN()},
			domain.ColReproductionRate:    {1.5, 0.8},
			domain.ColNewTestsSmoothed:    {1000, 500},
			domain.ColPositiveRate:        {0.1, math.NaN()},
			domain.ColFemaleSmokers:       {10, 20},
			domain.ColMaleSmokers:         {30, 40},
		})
	var err error
	in, err = in.WithText("SP.POP.80UP.FE", []string{"100", ".."})
	require.NoError(t, err)
	in, err = in.WithText("SP.POP.80UP.MA", []string{"50", "70"})
	require.NoError(t, err)
	in, err = in.WithText("SP.URB.TOTL.IN.ZS", []string{"40", " 75.5 "})
	require.NoError(t, err)

	out, _, err := DeriveFeatures(context.Background(), in, defaultSeries(), nil)
	require.NoError(t, err)

	tests := []struct {
		column string
		row    int
		want   float64
	}{
		{domain.ColTotalCardiovascDeaths, 0, 2000},
		{domain.ColTotalReproduction, 0, 15},
		{domain.ColTotalReproduction, 1, 16},
		{domain.ColNewPositiveTestsSmoothed, 0, 100},
		{domain.ColTotalSmokers, 0, 200000},
		{domain.ColTotalSmokers, 1, 600000},
		{domain.ColTotalUrbanPopulation, 0, 400000},
		{domain.ColTotalUrbanPopulation, 1, 1510000},
		{domain.ColTotalPopulationOver80, 0, 150},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, out.Value(tt.column, tt.row), 1e-6, "%s row %d", tt.column, tt.row)
	}

	missing := []struct {
		column string
		row    int
	}{
		{domain.ColTotalCardiovascDeaths, 1},
		{domain.ColNewPositiveTestsSmoothed, 1},
		{domain.ColTotalPopulationOver80, 1},
		{domain.ColAgeDependencyRatio, 0},
	}
	for _, m := range missing {
		assert.True(t, math.IsNaN(out.Value(m.column, m.row)), "%s row %d", m.column, m.row)
	}

	assert.False(t, in.HasColumn(domain.ColTotalSmokers))
	assert.True(t, out.HasColumn(domain.ColCardiovascDeathRate))
}

func TestDeriveFeatures_TypeCoercionError(t *testing.T) {
	day := mustDate(t, "2022-06-01")
	in := buildFrame(t, []string{"AAA"}, []time.Time{day}, map[string][]float64{domain.ColPopulation: {1e6}})
	in, err := in.WithText("SP.URB.TOTL.IN.ZS", []string{"n/a"})
	require.NoError(t, err)

	_, _, err = DeriveFeatures(context.Background(), in, defaultSeries(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTypeCoercion))
	assert.Contains(t, err.Error(), "AAA")
	assert.Contains(t, err.Error(), "n/a")
}

func TestCoerceSeries(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		missing bool
		wantErr bool
	}{
		{raw: "12.5", want: 12.5},
		{raw: " 3 ", want: 3},
		{raw: "", missing: true},
		{raw: "..", missing: true},
		{raw: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := CoerceSeries("AAA", "S", tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.missing {
				assert.True(t, math.IsNaN(v))
				return
			}
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestSplit(t *testing.T) {
	d := func(s string) time.Time { return mustDate(t, s) }
	dates := []time.Time{
		d("2021-12-31"), d("2022-01-01"), d("2022-12-31"),
		d("2023-01-01"), d("2023-06-30"), d("2023-07-01"),
	}
	in := buildFrame(t, []string{"AAA", "AAA", "AAA", "AAA", "AAA", "AAA"}, dates, nil)
	train := Window{From: d("2022-01-01"), To: d("2022-12-31")}
	holdout := Window{From: d("2023-01-01"), To: d("2023-06-30")}

	parts, report, err := Split(context.Background(), in, train, holdout, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, parts.Train.Len())
	assert.Equal(t, 2, parts.Holdout.Len())
	for i := 0; i < parts.Train.Len(); i++ {
		assert.True(t, train.Contains(parts.Train.Date(i)))
		assert.False(t, holdout.Contains(parts.Train.Date(i)))
	}
	for i := 0; i < parts.Holdout.Len(); i++ {
		assert.True(t, holdout.Contains(parts.Holdout.Date(i)))
	}
	assert.Equal(t, 2, report.Excluded[domain.ReasonOutsideWindow])
}

func TestSplit_RejectsBadWindows(t *testing.T) {
	d := func(s string) time.Time { return mustDate(t, s) }
	in := buildFrame(t, []string{"AAA"}, []time.Time{d("2022-01-01")}, nil)

	tests := []struct {
		name    string
		train   Window
		holdout Window
	}{
		{"overlap", Window{d("2022-01-01"), d("2023-01-31")}, Window{d("2023-01-01"), d("2023-06-30")}},
		{"shared endpoint", Window{d("2022-01-01"), d("2023-01-01")}, Window{d("2023-01-01"), d("2023-06-30")}},
		{"reversed", Window{d("2022-12-31"), d("2022-01-01")}, Window{d("2023-01-01"), d("2023-06-30")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Split(context.Background(), in, tt.train, tt.holdout, nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		})
	}
}
