package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// StageLagJoin is the report name of the lag join stage.
const StageLagJoin = "lag_join"

// lagKey addresses one (entity, day) cell of the lag index.
type lagKey struct {
	entity string
	day    int64
}

// LagIndex maps (entity, date) to the value of one numeric column.
type LagIndex struct {
	values map[lagKey]float64
}

// BuildLagIndex indexes column over every row of f. With repeated
// (entity, date) rows the first one wins.
func BuildLagIndex(f *frame.Frame, column string) (*LagIndex, error) {
	col, ok := f.Numeric(column)
	if !ok {
		return nil, fmt.Errorf("lag index: column %s not found", column)
	}
	idx := &LagIndex{values: make(map[lagKey]float64, f.Len())}
	for i := 0; i < f.Len(); i++ {
		k := lagKey{f.Entity(i), frame.DayNumber(f.Date(i))}
		if _, exists := idx.values[k]; !exists {
			idx.values[k] = col[i]
		}
	}
	return idx, nil
}

// Lookup returns the indexed value for entity at the given day number.
func (l *LagIndex) Lookup(entity string, day int64) (float64, bool) {
	v, ok := l.values[lagKey{entity, day}]
	return v, ok
}

// Len returns the number of indexed cells.
func (l *LagIndex) Len() int { return len(l.values) }

// LagJoinOptions configures LagJoin.
type LagJoinOptions struct {
	// Source is the column read at the future date.
	Source string
	// Target is the name of the appended column.
	Target string
	// Days is the forward offset.
	Days int
}

// DefaultLagJoinOptions returns the 14 day smoothed deaths lag.
func DefaultLagJoinOptions() LagJoinOptions {
	return LagJoinOptions{
		Source: domain.ColNewDeathsSmoothed,
		Target: domain.ColLaggedDeaths,
		Days:   14,
	}
}

// LagJoin appends Target holding, for each row, the Source value of the same
// entity exactly Days calendar days later. Rows without such a record are
// dropped (inner join); no gap filling is attempted. A matched record whose
// Source value is missing yields a missing Target, left for the model filters.
func LagJoin(ctx context.Context, in *frame.Frame, opts LagJoinOptions, logger *slog.Logger) (*frame.Frame, domain.StageReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.NewStageReport(StageLagJoin, in.Len())

	index, err := BuildLagIndex(in, opts.Source)
	if err != nil {
		return nil, report, apperrors.NewAppValidationError(err.Error())
	}

	offset := int64(opts.Days)
	keep := make([]int, 0, in.Len())
	lagged := make([]float64, 0, in.Len())
	for i := 0; i < in.Len(); i++ {
		v, ok := index.Lookup(in.Entity(i), frame.DayNumber(in.Date(i))+offset)
		if !ok {
			continue
		}
		keep = append(keep, i)
		lagged = append(lagged, v)
	}

	out, err := in.Take(keep).WithNumeric(opts.Target, lagged)
	if err != nil {
		return nil, report, err
	}

	misses := in.Len() - out.Len()
	report.Exclude(domain.ReasonLagJoinMiss, misses)
	report.RowsOut = out.Len()

	missingTarget := 0
	for _, v := range lagged {
		if math.IsNaN(v) {
			missingTarget++
		}
	}

	logger.InfoContext(ctx, "lag join complete",
		"lag_days", opts.Days,
		"index_size", index.Len(),
		"rows_out", out.Len(),
		"join_misses", misses,
		"missing_target", missingTarget,
	)
	if misses > 0 {
		logger.DebugContext(ctx, "rows dropped without lag target",
			"error", apperrors.NewJoinMissError("lag target", misses).Error())
	}
	return out, report, nil
}
