package dataprocessing

import (
	"context"
	"log/slog"

	"covidlag/pkg/contracts/domain"
)

// StageReshape is the report name of the population pivot.
const StageReshape = "reshape_population"

// ReshapePopulation pivots long records into one row per entity and one
// column per series code. The series description is dropped. When an
// (entity, series) pair repeats, the first occurrence is kept and the
// repeat is counted in Duplicates. Values stay raw text.
func ReshapePopulation(ctx context.Context, records []domain.PopulationRecord, logger *slog.Logger) (*domain.PopulationTable, domain.StageReport) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.NewStageReport(StageReshape, len(records))

	table := &domain.PopulationTable{
		Names:  make(map[string]string),
		Values: make(map[string]map[string]string),
	}
	seenSeries := make(map[string]struct{})

	for _, rec := range records {
		row, ok := table.Values[rec.CountryCode]
		if !ok {
			row = make(map[string]string)
			table.Values[rec.CountryCode] = row
			table.Entities = append(table.Entities, rec.CountryCode)
			table.Names[rec.CountryCode] = rec.CountryName
		}
		if _, ok := seenSeries[rec.SeriesCode]; !ok {
			seenSeries[rec.SeriesCode] = struct{}{}
			table.Series = append(table.Series, rec.SeriesCode)
		}
		if _, dup := row[rec.SeriesCode]; dup {
			table.Duplicates++
			continue
		}
		row[rec.SeriesCode] = rec.Value
	}

	report.Exclude(domain.ReasonDuplicateSeries, table.Duplicates)
	report.RowsOut = len(table.Entities)

	logger.InfoContext(ctx, "population reshaped",
		"entities", len(table.Entities),
		"series", len(table.Series),
		"duplicates", table.Duplicates,
	)
	if table.Duplicates > 0 {
		logger.WarnContext(ctx, "duplicate population series kept first occurrence",
			"duplicates", table.Duplicates)
	}
	return table, report
}
