package dataprocessing

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jszwec/csvutil"
	"golang.org/x/time/rate"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// SourceObservations names the observation dataset in errors and reports.
const SourceObservations = "observations"

// progressInterval throttles decode progress logs.
const progressInterval = 2 * time.Second

// LoadObservationsFile opens path and decodes it with LoadObservations.
func LoadObservationsFile(ctx context.Context, path string, logger *slog.Logger) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewLoadError(SourceObservations, err).WithContext("path", path)
	}
	defer f.Close()
	return LoadObservations(ctx, f, logger)
}

// LoadObservations decodes an observation CSV into a Frame keyed by
// (iso_code, date). Every column of domain.Observation must be present in
// the header; extra columns are ignored. Empty cells become NaN.
func LoadObservations(ctx context.Context, r io.Reader, logger *slog.Logger) (*frame.Frame, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	reader := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	reader.ReuseRecord = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewLoadError(SourceObservations, errors.New("empty file"))
		}
		return nil, apperrors.NewLoadError(SourceObservations, err)
	}
	dec.DisallowMissingColumns = true

	var (
		entities   []string
		dates      []time.Time
		continents []string
		locations  []string
		measures   = make([][]float64, len(domain.ObservationMeasures))
		progress   = rate.Sometimes{Interval: progressInterval}
	)

	row := 1
	for {
		var obs domain.Observation
		if err := dec.Decode(&obs); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, apperrors.NewLoadError(SourceObservations, fmt.Errorf("row %d: %w", row+1, err)).
				WithContext("row", row+1)
		}
		row++

		date, err := frame.ParseDate(obs.Date)
		if err != nil {
			return nil, apperrors.NewLoadError(SourceObservations, fmt.Errorf("row %d: invalid date %q: %w", row, obs.Date, err)).
				WithContext("row", row)
		}

		entities = append(entities, obs.ISOCode)
		dates = append(dates, date)
		continents = append(continents, obs.Continent)
		locations = append(locations, obs.Location)
		for j, m := range domain.ObservationMeasures {
			measures[j] = append(measures[j], floatOrNaN(m.Get(&obs)))
		}

		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		progress.Do(func() {
			logger.InfoContext(ctx, "decoding observations", "rows", row-1)
		})
	}

	f, err := frame.New(entities, dates)
	if err != nil {
		return nil, apperrors.NewLoadError(SourceObservations, err)
	}
	if f, err = f.WithText(domain.ColContinent, continents); err != nil {
		return nil, apperrors.NewLoadError(SourceObservations, err)
	}
	if f, err = f.WithText(domain.ColLocation, locations); err != nil {
		return nil, apperrors.NewLoadError(SourceObservations, err)
	}
	for j, m := range domain.ObservationMeasures {
		if f, err = f.WithNumeric(m.Column, measures[j]); err != nil {
			return nil, apperrors.NewLoadError(SourceObservations, err)
		}
	}

	logger.InfoContext(ctx, "observations loaded",
		"rows", f.Len(),
		"ignored_columns", len(dec.Unused()),
		"duration", time.Since(start),
	)
	return f, nil
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
