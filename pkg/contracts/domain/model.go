package domain

import (
	"fmt"
	"math"
	"time"
)

// ModelSpec is a declarative regression definition.
type ModelSpec struct {
	Name        string   `yaml:"name" json:"name" validate:"required,min=1,max=64"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Response    string   `yaml:"response" json:"response" default:"lagged_deaths_2wk" validate:"required"`
	Predictors  []string `yaml:"predictors" json:"predictors" validate:"required,min=1,unique,dive,required"`
}

// Columns returns the predictors followed by the response. A row must have a
// value in every one of these to take part in a fit or an evaluation.
func (s ModelSpec) Columns() []string {
	cols := make([]string, 0, len(s.Predictors)+1)
	cols = append(cols, s.Predictors...)
	return append(cols, s.Response)
}

// Coefficient is one estimated parameter of a fitted model.
type Coefficient struct {
	Name      string  `json:"name"`
	Estimate  float64 `json:"estimate"`
	StdError  float64 `json:"std_error"`
	TStat     float64 `json:"t_stat"`
	PValue    float64 `json:"p_value"`
	Intercept bool    `json:"intercept,omitempty"`
}

// ResidualStats summarizes in-sample residuals.
type ResidualStats struct {
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	StandardError float64 `json:"standard_error"`
	RMSE          float64 `json:"rmse"`
}

// FittedModel binds a ModelSpec to its estimates and training diagnostics.
type FittedModel struct {
	Spec         ModelSpec     `json:"spec"`
	Intercept    float64       `json:"intercept"`
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	Residuals    ResidualStats `json:"residuals"`
	Excluded     int           `json:"excluded"`
	FittedAt     time.Time     `json:"fitted_at"`
}

// Predict evaluates the model for predictor values given in spec order.
func (m *FittedModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Spec.Predictors) {
		return math.NaN(), fmt.Errorf("model %s expects %d predictors, got %d", m.Spec.Name, len(m.Spec.Predictors), len(x))
	}
	slopes := m.Slopes()
	if len(slopes) != len(x) {
		return math.NaN(), fmt.Errorf("model %s has %d slopes for %d predictors", m.Spec.Name, len(slopes), len(x))
	}
	y := m.Intercept
	for i, v := range x {
		y += slopes[i] * v
	}
	return y, nil
}

// Slopes returns non-intercept estimates in predictor order.
func (m *FittedModel) Slopes() []float64 {
	out := make([]float64, 0, len(m.Spec.Predictors))
	for _, c := range m.Coefficients {
		if !c.Intercept {
			out = append(out, c.Estimate)
		}
	}
	return out
}

// EntityRMSE is the holdout error of one model for one entity.
type EntityRMSE struct {
	Entity     string  `json:"entity"`
	Location   string  `json:"location"`
	Population float64 `json:"population"`
	RMSE       float64 `json:"rmse"`
	N          int     `json:"n"`
}

// ModelEvaluation is the out-of-sample scoring of a FittedModel.
type ModelEvaluation struct {
	Model      string       `json:"model"`
	GlobalRMSE float64      `json:"global_rmse"`
	N          int          `json:"n"`
	Excluded   int          `json:"excluded"`
	PerEntity  []EntityRMSE `json:"per_entity"`
}

// ModelFailure records a model that could not be fitted.
type ModelFailure struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
	N      int    `json:"n"`
	P      int    `json:"p"`
}
