package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"unicode/utf8"

	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// StageClean is the report name of the cleaning stage.
const StageClean = "clean"

// CleanOptions controls which observations count as country level.
type CleanOptions struct {
	EntityCodeLength int
	MinPopulation    float64
}

// Clean keeps rows whose entity code has exactly EntityCodeLength characters
// and whose population is at least MinPopulation. A missing population fails
// the threshold. Repeated (entity, date) rows keep their first occurrence.
func Clean(ctx context.Context, in *frame.Frame, opts CleanOptions, logger *slog.Logger) (*frame.Frame, domain.StageReport) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.NewStageReport(StageClean, in.Len())
	population, _ := in.Numeric(domain.ColPopulation)

	type key struct {
		entity string
		day    int64
	}
	seen := make(map[key]struct{}, in.Len())

	keep := make([]int, 0, in.Len())
	for i := 0; i < in.Len(); i++ {
		entity := in.Entity(i)
		if utf8.RuneCountInString(entity) != opts.EntityCodeLength {
			report.Exclude(domain.ReasonEntityCode, 1)
			continue
		}
		pop := math.NaN()
		if population != nil {
			pop = population[i]
		}
		if math.IsNaN(pop) || pop < opts.MinPopulation {
			report.Exclude(domain.ReasonPopulationThreshold, 1)
			continue
		}
		k := key{entity, frame.DayNumber(in.Date(i))}
		if _, dup := seen[k]; dup {
			report.Exclude(domain.ReasonDuplicateObservation, 1)
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}

	out := in.Take(keep)
	report.RowsOut = out.Len()

	logger.InfoContext(ctx, "observations cleaned",
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"entities", len(out.DistinctEntities()),
		"excluded", report.Excluded,
	)
	return out, report
}
