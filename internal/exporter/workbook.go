package exporter

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"covidlag/internal/config"
	apperrors "covidlag/internal/errors"
)

// maxSheetName is the Excel limit on worksheet name length.
const maxSheetName = 31

// WorkbookExporter writes all report tables into one xlsx workbook.
type WorkbookExporter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewWorkbookExporter creates a WorkbookExporter.
func NewWorkbookExporter(paths *config.Paths, logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{paths: paths, logger: logger}
}

// Export writes the workbook and returns its path. Sheets are Summary,
// Coefficients, one RMSE sheet per top model and Failures when any model
// failed.
func (w *WorkbookExporter) Export(res *Results) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return "", apperrors.NewStorageError("failed to create workbook style", err)
	}

	used := map[string]bool{"summary": true, "coefficients": true, "failures": true}
	sheets := []sheetSpec{
		{"Summary", SummaryTable(res)},
		{"Coefficients", CoefficientsTable(res)},
	}
	for _, m := range res.Top() {
		sheets = append(sheets, sheetSpec{uniqueSheetName("RMSE_"+m.Spec.Name, used), EntityRMSETable(m.Evaluation)})
	}
	if failures := FailuresTable(res); len(failures.Rows) > 0 {
		sheets = append(sheets, sheetSpec{"Failures", failures})
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return "", apperrors.NewStorageError("failed to name sheet", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return "", apperrors.NewStorageError("failed to add sheet", err).WithContext("sheet", s.name)
		}
		if err := writeSheet(f, s.name, s.table, header); err != nil {
			return "", apperrors.NewStorageError("failed to write sheet", err).WithContext("sheet", s.name)
		}
	}
	f.SetActiveSheet(0)

	path := w.paths.GetReportPath(config.WorkbookXLSX)
	if err := os.MkdirAll(filepath.Dir(path), config.DirPermissions); err != nil {
		return "", apperrors.NewStorageError("failed to create report directory", err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", apperrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}

	w.logger.Info("Workbook written",
		slog.String("path", path),
		slog.Int("sheets", len(sheets)))
	return path, nil
}

// writeSheet writes the header row in bold and every cell that parses as a
// number as a number, so spreadsheet formulas work on the values.
func writeSheet(f *excelize.File, sheet string, t Table, headerStyle int) error {
	if len(t.Headers) == 0 {
		return nil
	}
	headers := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				cells[i] = n
			} else {
				cells[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

type sheetSpec struct {
	name  string
	table Table
}

// uniqueSheetName truncates to the Excel limit and appends a counter when
// the name is already taken.
func uniqueSheetName(s string, used map[string]bool) string {
	base := sanitize(s)
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		cut := base
		if len(cut)+len(suffix) > maxSheetName {
			cut = cut[:maxSheetName-len(suffix)]
		}
		name = cut + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
