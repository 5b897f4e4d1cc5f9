package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		[]string{"AAA", "AAA", "BBB"},
		[]time.Time{day("2022-01-01"), day("2022-01-02"), day("2022-01-01")},
	)
	require.NoError(t, err)
	f, err = f.WithNumeric("x", []float64{1, math.NaN(), 3})
	require.NoError(t, err)
	f, err = f.WithText("code", []string{"a", "b", "c"})
	require.NoError(t, err)
	return f
}

func TestNew_LengthMismatch(t *testing.T) {
	_, err := New([]string{"AAA"}, nil)
	assert.Error(t, err)
}

func TestFrame_Accessors(t *testing.T) {
	f := sampleFrame(t)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t, "BBB", f.Entity(2))
	assert.Equal(t, day("2022-01-02"), f.Date(1))
	assert.Equal(t, []string{"x", "code"}, f.Columns())
	assert.True(t, f.HasColumn("x"))
	assert.True(t, f.IsNumeric("x"))
	assert.False(t, f.IsNumeric("code"))
	assert.Equal(t, 3.0, f.Value("x", 2))
	assert.True(t, math.IsNaN(f.Value("missing", 0)))
	assert.Equal(t, "b", f.String("code", 1))
	assert.Equal(t, "", f.String("missing", 1))
}

func TestFrame_WithColumnDoesNotMutateReceiver(t *testing.T) {
	f := sampleFrame(t)

	g, err := f.WithNumeric("y", []float64{7, 8, 9})
	require.NoError(t, err)

	assert.False(t, f.HasColumn("y"))
	assert.True(t, g.HasColumn("y"))
	assert.Equal(t, []string{"x", "code"}, f.Columns())
	assert.Equal(t, []string{"x", "code", "y"}, g.Columns())
}

func TestFrame_WithColumnErrors(t *testing.T) {
	f := sampleFrame(t)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"numeric length mismatch", func() error { _, err := f.WithNumeric("y", []float64{1}); return err }},
		{"text length mismatch", func() error { _, err := f.WithText("y", []string{"a"}); return err }},
		{"numeric over text", func() error { _, err := f.WithNumeric("code", []float64{1, 2, 3}); return err }},
		{"text over numeric", func() error { _, err := f.WithText("x", []string{"a", "b", "c"}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.fn())
		})
	}
}

func TestFrame_FilterCopiesColumns(t *testing.T) {
	f := sampleFrame(t)

	g := f.Filter(func(i int) bool { return f.Entity(i) == "AAA" })
	require.Equal(t, 2, g.Len())

	col, ok := g.Numeric("x")
	require.True(t, ok)
	col[0] = 100

	assert.Equal(t, 1.0, f.Value("x", 0), "filtering must not share storage with the source")
}

func TestFrame_Complete(t *testing.T) {
	f := sampleFrame(t)

	assert.True(t, f.Complete(0, []string{"x"}))
	assert.False(t, f.Complete(1, []string{"x"}))
	assert.False(t, f.Complete(0, []string{"x", "absent"}))
}

func TestFrame_DistinctEntitiesAndDateRange(t *testing.T) {
	f := sampleFrame(t)

	assert.Equal(t, []string{"AAA", "BBB"}, f.DistinctEntities())

	first, last, ok := f.DateRange()
	require.True(t, ok)
	assert.Equal(t, day("2022-01-01"), first)
	assert.Equal(t, day("2022-01-02"), last)

	_, _, ok = Empty().DateRange()
	assert.False(t, ok)
}

func TestDayNumberAndWindow(t *testing.T) {
	a := day("2022-01-01")
	b := a.AddDate(0, 0, 14)

	assert.Equal(t, int64(14), DayNumber(b)-DayNumber(a))
	assert.True(t, InWindow(a, a, b))
	assert.True(t, InWindow(b, a, b))
	assert.False(t, InWindow(b.AddDate(0, 0, 1), a, b))
}
