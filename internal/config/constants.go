package config

import "time"

// Application constants
const (
	AppName = "covidlag"

	// DateLayout is the calendar date format of configuration and source files
	DateLayout = "2006-01-02"

	// Network timeouts
	DefaultHTTPTimeout = 5 * time.Minute

	// Default directories (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultReportsDir = "reports"
	DefaultLogsDir    = "logs"
	DefaultPlotsDir   = "plots"

	// Report file names
	ModelSummaryCSV = "model_summary.csv"
	CoefficientsCSV = "coefficients.csv"
	EntityRMSEFmt   = "entity_rmse_%s.csv"
	SnapshotCSV     = "snapshot.csv"
	WorkbookXLSX    = "covidlag_report.xlsx"
	RunManifestJSON = "run_manifest.json"

	// File permissions
	DirPermissions  = 0755
	FilePermissions = 0644
)
