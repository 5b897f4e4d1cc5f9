package dataprocessing

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"

	apperrors "covidlag/internal/errors"
	"covidlag/pkg/contracts/domain"
)

// SourcePopulation names the population dataset in errors and reports.
const SourcePopulation = "population"

const utf8BOM = "\ufeff"

// LoadPopulationFile loads a population export from path. Files ending in
// .xlsx are read with LoadPopulationXLSX, anything else as CSV.
func LoadPopulationFile(ctx context.Context, path, yearColumn, sheet string, logger *slog.Logger) ([]domain.PopulationRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadPopulationXLSX(ctx, path, sheet, yearColumn, logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewLoadError(SourcePopulation, err).WithContext("path", path)
	}
	defer f.Close()
	return LoadPopulation(ctx, f, yearColumn, logger)
}

// LoadPopulation decodes a long-form World Bank style CSV. The value is read
// from the header named yearColumn (for example "2023 [YR2023]"). Footer
// lines with a different field count, such as "Data from database: ...",
// are skipped.
func LoadPopulation(ctx context.Context, r io.Reader, yearColumn string, logger *slog.Logger) ([]domain.PopulationRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader := &footerSkippingReader{r: csv.NewReader(bufio.NewReader(r))}
	reader.r.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewLoadError(SourcePopulation, errors.New("empty file"))
		}
		return nil, apperrors.NewLoadError(SourcePopulation, err)
	}
	dec.DisallowMissingColumns = true

	yearIdx := indexOf(dec.Header(), yearColumn)
	if yearIdx < 0 {
		return nil, apperrors.NewLoadError(SourcePopulation,
			fmt.Errorf("year column %q not found in header %v", yearColumn, dec.Header())).
			WithContext("year_column", yearColumn)
	}

	var records []domain.PopulationRecord
	for {
		var rec domain.PopulationRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, apperrors.NewLoadError(SourcePopulation, fmt.Errorf("record %d: %w", len(records)+1, err))
		}
		rec.Value = strings.TrimSpace(dec.Record()[yearIdx])
		if rec.CountryCode == "" || rec.SeriesCode == "" {
			reader.skipped++
			continue
		}
		records = append(records, rec)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "population records loaded",
		"records", len(records),
		"skipped_lines", reader.skipped,
		"year_column", yearColumn,
	)
	return records, nil
}

// footerSkippingReader drops records whose field count differs from the
// header and strips a UTF-8 byte order mark from the first header cell.
type footerSkippingReader struct {
	r       *csv.Reader
	width   int
	skipped int
}

func (f *footerSkippingReader) Read() ([]string, error) {
	for {
		rec, err := f.r.Read()
		if err != nil {
			return nil, err
		}
		if f.width == 0 {
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], utf8BOM)
			}
			f.width = len(rec)
			return rec, nil
		}
		if len(rec) != f.width || isBlank(rec) {
			f.skipped++
			continue
		}
		return rec, nil
	}
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}
