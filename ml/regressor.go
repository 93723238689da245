package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RidgeRegressor is an L2-regularised linear model with an unpenalised intercept.
type RidgeRegressor struct {
	Lambda    float64   `json:"lambda"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef,omitempty"`
}

func NewRidgeRegressor(lambda float64) *RidgeRegressor {
	return &RidgeRegressor{Lambda: lambda}
}

func (r *RidgeRegressor) Fitted() bool { return r.Coef != nil }

// Fit solves (XcᵀXc + λI)β = Xcᵀyc on mean-centred data.
func (r *RidgeRegressor) Fit(X [][]float64, y []float64) error {
	cols, err := columns(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return fmt.Errorf("ridge: %d rows but %d targets: %w", len(X), len(y), ErrFeatureMismatch)
	}

	for i, row := range X {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("ridge: non-finite value at row %d column %d: %w", i, j, ErrComputation)
			}
		}
	}

	n, d := len(X), len(cols)
	means := make([]float64, d)
	for j, c := range cols {
		means[j] = stat.Mean(c, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, d, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, v-means[j])
		}
	}
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	beta, err := solveRidge(xc, yc, r.Lambda)
	if err != nil {
		return err
	}
	coef := make([]float64, d)
	intercept := yMean
	for j := 0; j < d; j++ {
		coef[j] = beta.AtVec(j)
		intercept -= coef[j] * means[j]
		if math.IsNaN(coef[j]) || math.IsInf(coef[j], 0) {
			return fmt.Errorf("ridge: non-finite coefficient for column %d: %w", j, ErrComputation)
		}
	}

	r.Coef = coef
	r.Intercept = intercept
	return nil
}

func solveRidge(X *mat.Dense, y *mat.VecDense, l2 float64) (*mat.VecDense, error) {
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	n, _ := xtx.Dims()

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += l2
			}
			sym.SetSym(i, j, v)
		}
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); ok {
		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, &xty); err == nil {
			return &beta, nil
		}
	}

	// Rank-deficient system: minimum-norm least squares via thin SVD.
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, fmt.Errorf("ridge: singular value decomposition failed: %w", ErrComputation)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	for i, val := range s {
		if val > 1e-12 {
			uty.SetVec(i, uty.AtVec(i)/val)
		} else {
			uty.SetVec(i, 0)
		}
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)
	return &beta, nil
}

func (r *RidgeRegressor) Predict(X [][]float64) ([]float64, error) {
	if !r.Fitted() {
		return nil, fmt.Errorf("ridge: %w", ErrNotFitted)
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(r.Coef) {
			return nil, fmt.Errorf("ridge: row %d has %d columns, want %d: %w", i, len(row), len(r.Coef), ErrFeatureMismatch)
		}
		v := r.Intercept
		for j, x := range row {
			v += r.Coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}

// Importances are absolute coefficients normalised to sum to one. Inputs are
// expected on a common scale (standardised features) for the ranking to mean anything.
func (r *RidgeRegressor) Importances() []float64 {
	out := make([]float64, len(r.Coef))
	var total float64
	for j, c := range r.Coef {
		out[j] = math.Abs(c)
		total += out[j]
	}
	if total == 0 {
		return out
	}
	for j := range out {
		out[j] /= total
	}
	return out
}

func meanSquaredError(truth, pred []float64) float64 {
	var sum float64
	for i := range truth {
		d := truth[i] - pred[i]
		sum += d * d
	}
	return sum / float64(len(truth))
}

// rSquared follows the usual convention for a constant target: 1 when the fit
// is exact, 0 otherwise.
func rSquared(truth, pred []float64) float64 {
	if len(truth) < 2 || stat.Variance(truth, nil) == 0 {
		if meanSquaredError(truth, pred) == 0 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(pred, truth, nil)
}
