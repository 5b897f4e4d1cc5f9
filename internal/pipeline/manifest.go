package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"covidlag/internal/config"
	"covidlag/pkg/contracts"
)

// Manifest status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunManifest is the audit record of one run, written as run_manifest.json.
type RunManifest struct {
	mu sync.RWMutex `json:"-"`

	RunID     string                `json:"run_id"`
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time,omitempty"`
	Status    string                `json:"status"`
	Error     string                `json:"error,omitempty"`
	Version   contracts.VersionInfo `json:"version"`
	Config    ConfigSummary         `json:"config"`

	Sources    []SourceDigest            `json:"sources"`
	Stages     []StageRecord             `json:"stages"`
	Exclusions map[string]map[string]int `json:"exclusions"`
	Models     []ModelRecord             `json:"models"`
	Outputs    []string                  `json:"outputs"`
}

// ConfigSummary holds the parameters that determine the result of a run.
type ConfigSummary struct {
	EntityCodeLength int      `json:"entity_code_length"`
	MinPopulation    float64  `json:"min_population"`
	LagDays          int      `json:"lag_days"`
	TrainWindow      string   `json:"train_window"`
	HoldoutWindow    string   `json:"holdout_window"`
	SnapshotDate     string   `json:"snapshot_date"`
	PopulationYear   string   `json:"population_year_column"`
	Models           []string `json:"models"`
	TopModels        int      `json:"top_models"`
}

// SummarizeConfig extracts the ConfigSummary of cfg.
func SummarizeConfig(cfg *config.Config) ConfigSummary {
	p := cfg.Pipeline
	models := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		models[i] = m.Name
	}
	return ConfigSummary{
		EntityCodeLength: p.EntityCodeLength,
		MinPopulation:    p.MinPopulation,
		LagDays:          p.LagDays,
		TrainWindow:      p.TrainFrom + ".." + p.TrainTo,
		HoldoutWindow:    p.HoldoutFrom + ".." + p.HoldoutTo,
		SnapshotDate:     p.SnapshotDate,
		PopulationYear:   cfg.Sources.PopulationYearColumn,
		Models:           models,
		TopModels:        cfg.Report.TopModels,
	}
}

// SourceDigest fingerprints one input file.
type SourceDigest struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Blake2b string    `json:"blake2b_256"`
}

// ModelRecord is the manifest line of one model. Non-finite statistics are
// written as null.
type ModelRecord struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	N           int      `json:"n"`
	Excluded    int      `json:"excluded"`
	RSquared    *float64 `json:"r_squared"`
	HoldoutN    int      `json:"holdout_n"`
	GlobalRMSE  *float64 `json:"global_rmse"`
	Rank        int      `json:"rank,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	FitDuration string   `json:"fit_duration"`
}

// NewRunManifest creates a running manifest for runID.
func NewRunManifest(runID string, start time.Time, cfg *config.Config) *RunManifest {
	return &RunManifest{
		RunID:      runID,
		StartTime:  start,
		Status:     RunStatusRunning,
		Version:    contracts.GetVersionInfo(),
		Config:     SummarizeConfig(cfg),
		Exclusions: map[string]map[string]int{},
	}
}

// AddSource records the digest of an input file.
func (m *RunManifest) AddSource(d SourceDigest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sources = append(m.Sources, d)
}

// AddOutputs records written files.
func (m *RunManifest) AddOutputs(paths ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outputs = append(m.Outputs, paths...)
}

// AddModel records the outcome of one model.
func (m *RunManifest) AddModel(r ModelRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Models = append(m.Models, r)
}

// Finish closes the manifest with the stage states and exclusion counts.
// A nil err marks the run completed.
func (m *RunManifest) Finish(end time.Time, stages []*StageState, exclusions *Exclusions, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = end
	m.Stages = m.Stages[:0]
	for _, s := range stages {
		m.Stages = append(m.Stages, s.Record())
	}
	if exclusions != nil {
		m.Exclusions = exclusions.Snapshot()
	}
	if err != nil {
		m.Status = RunStatusFailed
		m.Error = err.Error()
		return
	}
	m.Status = RunStatusCompleted
}

// SaveToFile writes the manifest as indented JSON, replacing path atomically.
func (m *RunManifest) SaveToFile(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), config.DirPermissions); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, config.FilePermissions); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}

// LoadManifestFromFile reads a manifest written by SaveToFile.
func LoadManifestFromFile(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &manifest, nil
}

// DigestFile computes the BLAKE2b-256 digest of the file at path.
func DigestFile(name, path string) (SourceDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceDigest{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return SourceDigest{}, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return SourceDigest{}, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return SourceDigest{}, err
	}
	return SourceDigest{
		Name:    name,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Blake2b: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
