// Package cli implements the covidlag command line with cobra.
//
//	covidlag run      full pipeline, reports and console summary
//	covidlag fetch    download the observation file
//	covidlag models   effective model specs as YAML
//	covidlag version  build information
//
// Flags override the config file, which overrides COVIDLAG_* environment
// variables, which override the built-in defaults.
package cli
