// Package app wires the components shared by the covidlag commands.
//
// NewApplication loads nothing itself: it takes a validated config, sets up
// the slog logger, resolves and creates the working directories and starts
// the OpenTelemetry providers. Run and Fetch are the two operations the CLI
// exposes on top of it; Stop flushes telemetry and closes the log file.
//
// The package never calls os.Exit; errors are returned to the caller.
package app
