package exporter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// ModelResult is everything known about one configured model after a run.
type ModelResult struct {
	Spec       domain.ModelSpec
	Model      *domain.FittedModel
	Failure    *domain.ModelFailure
	Evaluation *domain.ModelEvaluation
	// Rank is the 1-based position by holdout RMSE, 0 when not evaluated.
	Rank int
}

// Status returns "fitted" or "failed".
func (r ModelResult) Status() string {
	if r.Model == nil {
		return "failed"
	}
	return "fitted"
}

// Scatter is one x/y column pair drawn from the snapshot.
type Scatter struct {
	X string
	Y string
}

// FileName returns the plot file name for the pair.
func (s Scatter) FileName() string {
	return fmt.Sprintf("scatter_%s_vs_%s.png", sanitize(s.X), sanitize(s.Y))
}

// Results is the input of every report writer.
type Results struct {
	RunID        string
	GeneratedAt  time.Time
	TrainRows    int
	HoldoutRows  int
	Models       []ModelResult
	TopModels    []string
	SnapshotDate time.Time
	Snapshot     *frame.Frame
	Scatters     []Scatter
}

// Top returns the top ranked models that have an evaluation, best first.
func (r *Results) Top() []ModelResult {
	byName := make(map[string]ModelResult, len(r.Models))
	for _, m := range r.Models {
		byName[m.Spec.Name] = m
	}
	out := make([]ModelResult, 0, len(r.TopModels))
	for _, name := range r.TopModels {
		if m, ok := byName[name]; ok && m.Evaluation != nil {
			out = append(out, m)
		}
	}
	return out
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitize(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// EntityRMSEFileName returns the per-entity table name for model.
func EntityRMSEFileName(pattern, model string) string {
	return fmt.Sprintf(pattern, sanitize(model))
}
