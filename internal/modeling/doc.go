// Package modeling fits the lagged deaths regressions and scores them.
//
// FitOLS solves ordinary least squares with an intercept through a QR
// factorization of the column-scaled design (gonum/mat) and derives standard
// errors, t statistics and p-values from the Student's t distribution
// (gonum/stat/distuv).
//
// Fitter runs one fit per ModelSpec on a bounded errgroup. Each spec applies
// its own complete-case filter through BuildDesign, so a model that needs a
// sparse column never shrinks the sample of another model. A fit with fewer
// rows than parameters or a singular design yields a DEGENERATE_FIT error for
// that model only.
//
// Evaluator predicts the holdout partition and reports the row weighted
// global RMSE alongside per-entity RMSE ordered by population.
package modeling
