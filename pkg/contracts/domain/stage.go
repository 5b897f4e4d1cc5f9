package domain

// Exclusion reasons counted by the pipeline stages.
const (
	ReasonEntityCode           = "entity_code"
	ReasonPopulationThreshold  = "population_threshold"
	ReasonDuplicateObservation = "duplicate_observation"
	ReasonLagJoinMiss          = "lag_join_miss"
	ReasonPopulationJoinMiss   = "population_join_miss"
	ReasonDuplicateSeries      = "duplicate_series"
	ReasonOutsideWindow        = "outside_window"
	ReasonMissingPredictor     = "missing_predictor"
)

// StageReport records the row accounting of one transformation.
type StageReport struct {
	Stage    string         `json:"stage"`
	RowsIn   int            `json:"rows_in"`
	RowsOut  int            `json:"rows_out"`
	Excluded map[string]int `json:"excluded,omitempty"`
}

// NewStageReport starts a report for stage with rowsIn input rows.
func NewStageReport(stage string, rowsIn int) StageReport {
	return StageReport{Stage: stage, RowsIn: rowsIn, Excluded: make(map[string]int)}
}

// Exclude adds n rows excluded for reason.
func (r *StageReport) Exclude(reason string, n int) {
	if n <= 0 {
		return
	}
	if r.Excluded == nil {
		r.Excluded = make(map[string]int)
	}
	r.Excluded[reason] += n
}

// TotalExcluded sums all exclusion reasons.
func (r StageReport) TotalExcluded() int {
	total := 0
	for _, n := range r.Excluded {
		total += n
	}
	return total
}
