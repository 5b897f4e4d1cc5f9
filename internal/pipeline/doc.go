// Package pipeline runs the stages of one analysis in order and records what
// happened to every row.
//
// A Runner loads both sources, cleans and lag-joins the observations, merges
// the reshaped population table, derives features, splits by date, fits and
// evaluates every configured model and hands the results to the exporters.
// Each stage gets a StageState, an OpenTelemetry span and its metrics, and its
// exclusion counts are folded into Exclusions.
//
// The run always ends with run_manifest.json in the reports directory, also
// when a stage fails. It carries the stage states, the exclusion counts, the
// model outcomes and BLAKE2b digests of the two source files.
package pipeline
