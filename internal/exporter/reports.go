package exporter

import (
	"log/slog"

	"covidlag/internal/config"
)

// ReportExporter writes the CSV report set of a run.
type ReportExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewReportExporter creates a new report exporter
func NewReportExporter(paths *config.Paths, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{
		csvWriter: NewCSVWriter(paths, logger),
		logger:    logger,
	}
}

// ExportCSV writes model_summary.csv, coefficients.csv, one entity RMSE file
// per top model and, when a snapshot is present, snapshot.csv. It returns the
// written paths in order.
func (e *ReportExporter) ExportCSV(res *Results) ([]string, error) {
	var written []string
	write := func(name string, t Table) error {
		path, err := e.csvWriter.WriteSimpleCSV(name, t.Headers, t.Rows)
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(config.ModelSummaryCSV, SummaryTable(res)); err != nil {
		return written, err
	}
	if err := write(config.CoefficientsCSV, CoefficientsTable(res)); err != nil {
		return written, err
	}
	for _, m := range res.Top() {
		if err := write(EntityRMSEFileName(config.EntityRMSEFmt, m.Spec.Name), EntityRMSETable(m.Evaluation)); err != nil {
			return written, err
		}
	}
	if res.Snapshot != nil {
		if err := write(config.SnapshotCSV, SnapshotTable(res.Snapshot)); err != nil {
			return written, err
		}
	}

	e.logger.Info("CSV reports written", slog.Int("files", len(written)))
	return written, nil
}
