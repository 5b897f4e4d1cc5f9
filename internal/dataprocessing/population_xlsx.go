package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "covidlag/internal/errors"
	"covidlag/pkg/contracts/domain"
)

// populationHeaders are the fixed columns of a DataBank export.
var populationHeaders = []string{"Country Name", "Country Code", "Series Name", "Series Code"}

// LoadPopulationXLSX reads a DataBank xlsx export. sheet is tried first;
// when it does not exist, the first sheet whose header row carries the
// expected columns is used.
func LoadPopulationXLSX(ctx context.Context, path, sheet, yearColumn string, logger *slog.Logger) ([]domain.PopulationRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewLoadError(SourcePopulation, fmt.Errorf("failed to open workbook: %w", err)).
			WithContext("path", path)
	}
	defer f.Close()

	rows, sheetName, err := findPopulationSheet(f, sheet, yearColumn)
	if err != nil {
		return nil, apperrors.NewLoadError(SourcePopulation, err).WithContext("path", path)
	}

	header := rows[0]
	cols := make([]int, 0, len(populationHeaders)+1)
	for _, name := range append(append([]string(nil), populationHeaders...), yearColumn) {
		cols = append(cols, indexOf(header, name))
	}

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	records := make([]domain.PopulationRecord, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		rec := domain.PopulationRecord{
			CountryName: cell(row, cols[0]),
			CountryCode: cell(row, cols[1]),
			SeriesName:  cell(row, cols[2]),
			SeriesCode:  cell(row, cols[3]),
			Value:       cell(row, cols[4]),
		}
		if rec.CountryCode == "" || rec.SeriesCode == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "population workbook loaded",
		"sheet", sheetName,
		"records", len(records),
		"skipped_rows", skipped,
	)
	return records, nil
}

func findPopulationSheet(f *excelize.File, preferred, yearColumn string) ([][]string, string, error) {
	candidates := make([]string, 0, 1+f.SheetCount)
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	candidates = append(candidates, f.GetSheetList()...)

	for _, name := range candidates {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		if hasColumns(rows[0], append(append([]string(nil), populationHeaders...), yearColumn)) {
			return rows, name, nil
		}
	}
	return nil, "", fmt.Errorf("no sheet with columns %v and %q", populationHeaders, yearColumn)
}

func hasColumns(header []string, names []string) bool {
	for _, n := range names {
		if indexOf(header, n) < 0 {
			return false
		}
	}
	return true
}
