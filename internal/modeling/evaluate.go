package modeling

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

func residualStats(res *OLSResult) domain.ResidualStats {
	rs := domain.ResidualStats{
		Mean:          math.NaN(),
		StdDev:        math.NaN(),
		Min:           math.NaN(),
		Max:           math.NaN(),
		StandardError: math.NaN(),
		RMSE:          math.NaN(),
	}
	if len(res.Residuals) == 0 {
		return rs
	}
	rs.Mean, rs.StdDev = stat.MeanStdDev(res.Residuals, nil)
	rs.Min = floats.Min(res.Residuals)
	rs.Max = floats.Max(res.Residuals)
	rs.RMSE = math.Sqrt(res.SSR / float64(res.N))
	if res.DF > 0 {
		rs.StandardError = math.Sqrt(res.SSR / float64(res.DF))
	}
	return rs
}

// Evaluator scores fitted models on the holdout partition.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger.With("component", "evaluator")}
}

type entityAccumulator struct {
	location   string
	population float64
	sumSq      float64
	n          int
}

// Evaluate predicts every complete holdout row and reports the row weighted
// global RMSE and one RMSE per entity. Entities are ordered by population,
// largest first, taking each entity's population from its first holdout
// row; ties fall back to entity code.
func (e *Evaluator) Evaluate(ctx context.Context, model *domain.FittedModel, holdout *frame.Frame) (domain.ModelEvaluation, error) {
	eval := domain.ModelEvaluation{Model: model.Spec.Name, GlobalRMSE: math.NaN()}

	design, err := BuildDesign(holdout, model.Spec)
	if err != nil {
		return eval, err
	}
	eval.N = design.N()
	eval.Excluded = design.Excluded

	perEntity := make(map[string]*entityAccumulator)
	var order []string
	for i := 0; i < holdout.Len(); i++ {
		id := holdout.Entity(i)
		if _, ok := perEntity[id]; ok {
			continue
		}
		perEntity[id] = &entityAccumulator{
			location:   holdout.String(domain.ColLocation, i),
			population: holdout.Value(domain.ColPopulation, i),
		}
		order = append(order, id)
	}

	var sumSq float64
	x := make([]float64, len(model.Spec.Predictors))
	for r := 0; r < design.N(); r++ {
		copy(x, design.X.RawRowView(r))
		pred, err := model.Predict(x)
		if err != nil {
			return eval, err
		}
		diff := design.Y[r] - pred
		sq := diff * diff
		sumSq += sq
		acc := perEntity[design.Entities[r]]
		acc.sumSq += sq
		acc.n++
	}
	if design.N() > 0 {
		eval.GlobalRMSE = math.Sqrt(sumSq / float64(design.N()))
	}

	for _, id := range order {
		acc := perEntity[id]
		if acc.n == 0 {
			continue
		}
		eval.PerEntity = append(eval.PerEntity, domain.EntityRMSE{
			Entity:     id,
			Location:   acc.location,
			Population: acc.population,
			RMSE:       math.Sqrt(acc.sumSq / float64(acc.n)),
			N:          acc.n,
		})
	}
	SortByPopulation(eval.PerEntity)

	e.logger.InfoContext(ctx, "model evaluated",
		"model", eval.Model,
		"rows", eval.N,
		"excluded", eval.Excluded,
		"entities", len(eval.PerEntity),
		"global_rmse", eval.GlobalRMSE,
	)
	return eval, nil
}

// SortByPopulation orders rows by descending population. Missing populations
// sort last and ties are broken by entity code.
func SortByPopulation(rows []domain.EntityRMSE) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		an, bn := math.IsNaN(a.Population), math.IsNaN(b.Population)
		switch {
		case an != bn:
			return bn
		case !an && a.Population != b.Population:
			return a.Population > b.Population
		default:
			return a.Entity < b.Entity
		}
	})
}

// Rank returns evaluations ordered by ascending global RMSE with NaN last.
// The input is not modified.
func Rank(evals []domain.ModelEvaluation) []domain.ModelEvaluation {
	out := append([]domain.ModelEvaluation(nil), evals...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].GlobalRMSE, out[j].GlobalRMSE
		an, bn := math.IsNaN(a), math.IsNaN(b)
		switch {
		case an != bn:
			return bn
		case an:
			return out[i].Model < out[j].Model
		case a != b:
			return a < b
		default:
			return out[i].Model < out[j].Model
		}
	})
	return out
}

// TopN returns the n best ranked evaluations.
func TopN(evals []domain.ModelEvaluation, n int) []domain.ModelEvaluation {
	ranked := Rank(evals)
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
