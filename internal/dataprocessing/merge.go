package dataprocessing

import (
	"context"
	"log/slog"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// StageMerge is the report name of the population join.
const StageMerge = "merge_population"

// MergePopulation inner-joins observations with the population table on
// entity code. Each series code becomes a text column; an entity lacking a
// series gets an empty string, which coerces to missing.
func MergePopulation(ctx context.Context, in *frame.Frame, table *domain.PopulationTable, logger *slog.Logger) (*frame.Frame, domain.StageReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.NewStageReport(StageMerge, in.Len())

	missingEntities := make(map[string]struct{})
	out := in.Filter(func(i int) bool {
		if table.HasEntity(in.Entity(i)) {
			return true
		}
		missingEntities[in.Entity(i)] = struct{}{}
		return false
	})

	var err error
	for _, series := range table.Series {
		if out.HasColumn(series) {
			logger.WarnContext(ctx, "population series shadows an observation column, skipped", "series", series)
			continue
		}
		values := make([]string, out.Len())
		for i := range values {
			values[i], _ = table.Lookup(out.Entity(i), series)
		}
		if out, err = out.WithText(series, values); err != nil {
			return nil, report, err
		}
	}

	misses := in.Len() - out.Len()
	report.Exclude(domain.ReasonPopulationJoinMiss, misses)
	report.RowsOut = out.Len()

	logger.InfoContext(ctx, "population merged",
		"rows_out", out.Len(),
		"series", len(table.Series),
		"join_misses", misses,
		"entities_without_population", len(missingEntities),
	)
	if misses > 0 {
		logger.DebugContext(ctx, "rows dropped without population record",
			"error", apperrors.NewJoinMissError("population", misses).Error())
	}
	return out, report, nil
}
