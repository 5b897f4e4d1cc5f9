// Package dataprocessing loads the two source tables and turns them into the
// train and holdout partitions consumed by the modeling package.
//
// # Architecture
//
// Every stage is a pure function from one frame to a new frame plus a
// domain.StageReport counting the rows it dropped and why:
//
//  1. Loaders: LoadObservations (csvutil), LoadPopulation (csvutil, BOM and
//     footer aware) and LoadPopulationXLSX (excelize)
//  2. Clean: three-letter entity codes, population threshold, duplicate rows
//  3. LagJoin: hash-indexed self join attaching lagged_deaths_2wk
//  4. ReshapePopulation: long series records to one row per entity
//  5. MergePopulation: inner join of observations and population
//  6. DeriveFeatures: derived predictors, with explicit numeric coercion of
//     population series
//  7. Split: disjoint date windows
//
// # Data Flow
//
//	owid-covid-data.csv → Clean → LagJoin ─┐
//	                                       ├→ MergePopulation → DeriveFeatures → Split
//	population.csv → ReshapePopulation ────┘
//
// # Error Handling
//
// Load failures return a LOAD AppError carrying the source and row. A
// population value that is neither numeric nor a missing marker returns a
// TYPE_COERCION AppError naming the entity, series and raw text. Row level
// losses are never errors; they are counted in the stage report.
//
// # Fetching
//
// Fetcher downloads the observation file over HTTP. It accepts any HTTPClient
// so tests can serve fixtures from httptest.
package dataprocessing
