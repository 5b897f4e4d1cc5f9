package modeling

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// rankTolerance bounds the ratio of the smallest to largest diagonal entry of
// R below which the scaled design is treated as rank deficient.
const rankTolerance = 1e-10

// errSingular marks a design without a unique least squares solution.
var errSingular = errors.New("singular design matrix")

// OLSResult holds the estimates and diagnostics of one least squares fit.
// Index 0 of StdErrors, TStats and PValues refers to the intercept.
type OLSResult struct {
	Intercept   float64
	Slopes      []float64
	StdErrors   []float64
	TStats      []float64
	PValues     []float64
	Fitted      []float64
	Residuals   []float64
	RSquared    float64
	AdjRSquared float64
	SSR         float64
	N           int
	DF          int
}

// FitOLS regresses y on the columns of x plus an intercept. Columns are
// scaled by their largest absolute value before a QR solve and the estimates
// are mapped back afterwards, so predictors of very different magnitude
// (counts in the millions next to rates) stay well conditioned.
//
// It fails when there are fewer rows than parameters, when a column is
// identically zero, or when the design is rank deficient.
func FitOLS(x mat.Matrix, y []float64) (*OLSResult, error) {
	n, p := x.Dims()
	k := p + 1
	if len(y) != n {
		return nil, fmt.Errorf("response has %d rows, design has %d", len(y), n)
	}
	if n < k {
		return nil, fmt.Errorf("%d rows for %d parameters", n, k)
	}

	scale := make([]float64, k)
	scale[0] = 1
	scaled := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		scaled.Set(i, 0, 1)
	}
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			scale[j+1] = math.Max(scale[j+1], math.Abs(x.At(i, j)))
		}
		if scale[j+1] == 0 {
			return nil, fmt.Errorf("predictor %d is identically zero: %w", j, errSingular)
		}
		for i := 0; i < n; i++ {
			scaled.Set(i, j+1, x.At(i, j)/scale[j+1])
		}
	}

	var qr mat.QR
	qr.Factorize(scaled)
	if err := checkRank(&qr, k); err != nil {
		return nil, err
	}

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, mat.NewDense(n, 1, append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("condition number %.3g: %w", float64(cond), errSingular)
		}
		return nil, err
	}

	coef := make([]float64, k)
	for j := range coef {
		coef[j] = beta.At(j, 0) / scale[j]
	}

	res := &OLSResult{
		Intercept: coef[0],
		Slopes:    coef[1:],
		Fitted:    make([]float64, n),
		Residuals: make([]float64, n),
		N:         n,
		DF:        n - k,
	}
	for i := 0; i < n; i++ {
		yhat := coef[0]
		for j := 0; j < p; j++ {
			yhat += coef[j+1] * x.At(i, j)
		}
		res.Fitted[i] = yhat
		res.Residuals[i] = y[i] - yhat
	}
	res.SSR = floats.Dot(res.Residuals, res.Residuals)

	res.RSquared = math.NaN()
	res.AdjRSquared = math.NaN()
	if sst := totalSumOfSquares(y); sst > 0 {
		res.RSquared = stat.RSquaredFrom(res.Fitted, y, nil)
		if res.DF > 0 {
			res.AdjRSquared = 1 - (1-res.RSquared)*float64(n-1)/float64(res.DF)
		}
	}

	res.StdErrors, res.TStats, res.PValues = inference(scaled, scale, coef, res.SSR, res.DF)
	return res, nil
}

// checkRank rejects a factorization whose R has a negligible pivot.
func checkRank(qr *mat.QR, k int) error {
	var r mat.Dense
	qr.RTo(&r)
	maxDiag, minDiag := 0.0, math.Inf(1)
	for j := 0; j < k; j++ {
		d := math.Abs(r.At(j, j))
		maxDiag = math.Max(maxDiag, d)
		minDiag = math.Min(minDiag, d)
	}
	if maxDiag == 0 || minDiag/maxDiag < rankTolerance {
		return fmt.Errorf("rank deficient, pivot ratio %.3g: %w", minDiag/maxDiag, errSingular)
	}
	return nil
}

func totalSumOfSquares(y []float64) float64 {
	mean := stat.Mean(y, nil)
	var sst float64
	for _, v := range y {
		d := v - mean
		sst += d * d
	}
	return sst
}

// inference computes classical standard errors, t statistics and two sided
// p-values. Everything is NaN when there are no residual degrees of freedom.
func inference(scaled *mat.Dense, scale, coef []float64, ssr float64, df int) (se, t, p []float64) {
	k := len(coef)
	se, t, p = nanSlice(k), nanSlice(k), nanSlice(k)
	if df <= 0 {
		return se, t, p
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, scaled.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return se, t, p
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return se, t, p
	}

	sigma2 := ssr / float64(df)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	for j := 0; j < k; j++ {
		variance := sigma2 * inv.At(j, j) / (scale[j] * scale[j])
		if variance < 0 {
			continue
		}
		se[j] = math.Sqrt(variance)
		if se[j] == 0 {
			continue
		}
		t[j] = coef[j] / se[j]
		p[j] = 2 * dist.Survival(math.Abs(t[j]))
	}
	return se, t, p
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
