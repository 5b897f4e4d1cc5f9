package pipeline

import (
	"sync"
	"time"

	"covidlag/pkg/contracts/domain"
)

// Stage names in execution order.
const (
	StageLoadObservations = "load_observations"
	StageLoadPopulation   = "load_population"
	StageClean            = "clean"
	StageLagJoin          = "lag_join"
	StageReshape          = "reshape"
	StageMerge            = "merge"
	StageFeatures         = "features"
	StageSplit            = "split"
	StageFit              = "fit"
	StageEvaluate         = "evaluate"
	StageSnapshot         = "snapshot"
	StageExport           = "export"
)

// StageStatus represents the status of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState tracks one stage of a run.
type StageState struct {
	mu        sync.RWMutex
	Name      string
	Status    StageStatus
	StartTime *time.Time
	EndTime   *time.Time
	RowsIn    int
	RowsOut   int
	Excluded  map[string]int
	Message   string
	Error     string
}

// NewStageState creates a pending stage.
func NewStageState(name string) *StageState {
	return &StageState{Name: name, Status: StageStatusPending}
}

// Start marks the stage as active.
func (s *StageState) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.StartTime = &now
	s.EndTime = nil
	s.Status = StageStatusActive
	s.Error = ""
}

// Complete marks the stage as completed with the row accounting of report.
func (s *StageState) Complete(now time.Time, report domain.StageReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.EndTime = &now
	s.Status = StageStatusCompleted
	s.RowsIn = report.RowsIn
	s.RowsOut = report.RowsOut
	if len(report.Excluded) > 0 {
		s.Excluded = make(map[string]int, len(report.Excluded))
		for k, v := range report.Excluded {
			s.Excluded[k] = v
		}
	}
}

// Fail marks the stage as failed.
func (s *StageState) Fail(now time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.EndTime = &now
	s.Status = StageStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Skip marks the stage as skipped with the given reason
func (s *StageState) Skip(now time.Time, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// Duration returns the time between Start and the final transition.
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

// Record returns a serializable copy of the state.
func (s *StageState) Record() StageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := StageRecord{
		Name:     s.Name,
		Status:   string(s.Status),
		RowsIn:   s.RowsIn,
		RowsOut:  s.RowsOut,
		Excluded: s.Excluded,
		Message:  s.Message,
		Error:    s.Error,
	}
	if s.StartTime != nil {
		r.StartTime = *s.StartTime
	}
	if s.EndTime != nil {
		r.EndTime = *s.EndTime
		if s.StartTime != nil {
			r.Duration = s.EndTime.Sub(*s.StartTime).String()
		}
	}
	return r
}

// StageRecord is the manifest form of a StageState.
type StageRecord struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Duration  string         `json:"duration"`
	RowsIn    int            `json:"rows_in"`
	RowsOut   int            `json:"rows_out"`
	Excluded  map[string]int `json:"excluded,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Exclusions accumulates excluded row counts keyed by stage and reason.
type Exclusions struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

// NewExclusions creates an empty Exclusions.
func NewExclusions() *Exclusions {
	return &Exclusions{counts: make(map[string]map[string]int)}
}

// Add records n rows excluded by stage for reason.
func (e *Exclusions) Add(stage, reason string, n int) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	byReason, ok := e.counts[stage]
	if !ok {
		byReason = make(map[string]int)
		e.counts[stage] = byReason
	}
	byReason[reason] += n
}

// AddReport records every exclusion of report.
func (e *Exclusions) AddReport(report domain.StageReport) {
	for reason, n := range report.Excluded {
		e.Add(report.Stage, reason, n)
	}
}

// Count returns the rows excluded by stage for reason.
func (e *Exclusions) Count(stage, reason string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[stage][reason]
}

// Total returns all excluded rows.
func (e *Exclusions) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, byReason := range e.counts {
		for _, n := range byReason {
			total += n
		}
	}
	return total
}

// Snapshot returns a copy of the counts.
func (e *Exclusions) Snapshot() map[string]map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]map[string]int, len(e.counts))
	for stage, byReason := range e.counts {
		m := make(map[string]int, len(byReason))
		for reason, n := range byReason {
			m[reason] = n
		}
		out[stage] = m
	}
	return out
}
