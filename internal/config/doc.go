// Package config provides configuration loading for covidlag.
//
// # Configuration Sources
//
// Configuration is assembled in three layers, later layers winning:
//
//	1. Struct defaults (the `default` tags)
//	2. Environment variables, including a .env file in the working directory
//	3. A YAML file given with --config, COVIDLAG_CONFIG, or found at
//	   covidlag.yaml, config.yaml or configs/covidlag.yaml
//
// # Environment Variables
//
// Variables follow the COVIDLAG_<SECTION>_<KEY> pattern:
//
//	COVIDLAG_LOGGING_LEVEL=debug
//	COVIDLAG_PIPELINE_LAG_DAYS=14
//	COVIDLAG_SOURCES_POPULATION_FILE=wdi_2023.csv
//	COVIDLAG_REPORT_TOP_MODELS=2
//
// # Models
//
// Regression models are declared as a YAML list and cannot be set from the
// environment. When the file declares none, DefaultModels applies:
//
//	models:
//	  - name: hospitals
//	    predictors: [icu_patients, hosp_patients, weekly_hosp_admissions]
//
// The response defaults to lagged_deaths_2wk.
//
// # Path Management
//
// Paths resolves the data, reports, plots and logs directories against the
// base directory, which defaults to the working directory.
package config
