package regression

import (
	"fmt"
	"math"

	"goattrib/domain/core"
	"goattrib/domain/model"

	"gonum.org/v1/gonum/mat"
)

// RidgeInferenceNote documents how Ridge summary statistics are derived
const RidgeInferenceNote = "ridge estimates are biased: p-values are undefined, and R², AIC, BIC and F " +
	"reuse the OLS formulas with the raw coefficient count instead of the effective degrees of freedom"

// FitRidge minimises ||y - Xb||² + alpha·||b[1:]||²; the intercept is not penalised
func FitRidge(d *Design, alpha float64) (*model.FittedModel, []model.Warning, error) {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha <= 0 {
		return nil, nil, core.NewInvalidParameterError("alpha", fmt.Sprintf("must be finite and > 0, got %v", alpha))
	}
	_, k := d.Dims()

	var a mat.SymDense
	a.SymOuterK(1, d.X.T())
	for j := 1; j < k; j++ {
		a.SetSym(j, j, a.At(j, j)+alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return nil, nil, fmt.Errorf("%w: penalised system is not positive definite", core.ErrSingularDesign)
	}

	var xty mat.VecDense
	xty.MulVec(d.X.T(), d.Y)
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrSingularDesign, err)
	}

	m, warnings := summarize(d, &beta)
	m.Method = model.MethodRidge
	m.Alpha = alpha
	m.PValues = make(map[string]*model.Stat, k)
	for _, name := range d.Names {
		m.PValues[name] = nil
	}
	m.Approximate = true
	m.InferenceNote = RidgeInferenceNote

	return m, warnings, nil
}
