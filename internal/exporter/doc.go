// Package exporter writes the results of a run.
//
// Every writer consumes the same Results value:
//
// ReportExporter: model_summary.csv, coefficients.csv, entity_rmse_<model>.csv
// for the top models and snapshot.csv, through CSVWriter (UTF-8 BOM, atomic
// rename).
//
// WorkbookExporter: the same tables as sheets of one xlsx workbook (excelize).
//
// PlotExporter: PNG scatter plots of snapshot columns (gonum/plot).
//
// ConsoleReport: model summaries, the RMSE ranking and per-entity tables
// rendered with lipgloss, colored only on a terminal unless forced.
//
// Missing values are empty cells in CSV and "NA" on the console.
package exporter
