package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"covidlag/internal/config"
	apperrors "covidlag/internal/errors"
)

// CSVWriter writes report tables under the reports directory.
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // UTF-8 BOM so Excel detects the encoding
}

// WriteCSV writes a table to filePath, replacing any previous file. The
// table is written to a temporary file first and renamed into place.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Debug("Writing CSV file",
		slog.String("file_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, config.DirPermissions); err != nil {
		return "", apperrors.NewStorageError("failed to create report directory", err).WithContext("dir", dir)
	}

	file, err := os.CreateTemp(dir, filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return "", apperrors.NewStorageError("failed to create report file", err).WithContext("path", fullPath)
	}
	defer os.Remove(file.Name())

	if err := writeTable(file, options); err != nil {
		file.Close()
		return "", apperrors.NewStorageError("failed to write report file", err).WithContext("path", fullPath)
	}
	if err := file.Close(); err != nil {
		return "", apperrors.NewStorageError("failed to close report file", err).WithContext("path", fullPath)
	}
	if err := os.Chmod(file.Name(), config.FilePermissions); err != nil {
		return "", apperrors.NewStorageError("failed to set report permissions", err).WithContext("path", fullPath)
	}
	if err := os.Rename(file.Name(), fullPath); err != nil {
		return "", apperrors.NewStorageError("failed to move report into place", err).WithContext("path", fullPath)
	}
	return fullPath, nil
}

// WriteSimpleCSV writes headers and records with a BOM prefix.
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

func writeTable(file *os.File, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// resolvePath places relative names in the reports directory.
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetReportPath(filePath)
}
