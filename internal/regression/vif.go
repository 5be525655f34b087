package regression

import (
	"errors"
	"math"

	"goattrib/domain/model"

	"gonum.org/v1/gonum/mat"
)

// minTolerance is the smallest 1 - R² accepted before a VIF is undefined
const minTolerance = 1e-12

var errConstantColumn = errors.New("column is constant")

// AnalyzeVIF scores every feature column (controls excluded) by regressing
// it with an intercept on all other non-constant columns. A sub-regression
// that is singular or explains the column perfectly yields NaN and a
// warning; the remaining features are still scored.
func AnalyzeVIF(d *Design) (model.VIFReport, []model.Warning) {
	n, k := d.Dims()
	report := make(model.VIFReport, d.FeatureCount)
	var warnings []model.Warning

	for j := 1; j <= d.FeatureCount; j++ {
		name := d.Names[j]

		others := mat.NewDense(n, k-1, nil)
		col := 0
		for c := 0; c < k; c++ {
			if c == j {
				continue
			}
			others.SetCol(col, mat.Col(nil, c, d.X))
			col++
		}
		target := mat.NewVecDense(n, mat.Col(nil, j, d.X))

		r2, err := subRegressionR2(others, target)
		if err != nil {
			report[name] = model.Stat(math.NaN())
			warnings = append(warnings, model.NewWarning(model.WarningDegenerateSubRegression, name,
				"VIF undefined: %v", err))
			continue
		}
		if 1-r2 < minTolerance {
			report[name] = model.Stat(math.NaN())
			warnings = append(warnings, model.NewWarning(model.WarningDegenerateSubRegression, name,
				"VIF undefined: column is explained perfectly by the others (R²=%.12f)", r2))
			continue
		}
		report[name] = model.Stat(1 / (1 - r2))
	}

	return report, warnings
}

func subRegressionR2(x *mat.Dense, y *mat.VecDense) (float64, error) {
	n, _ := x.Dims()
	mean := mat.Sum(y) / float64(n)
	tss := 0.0
	for i := 0; i < n; i++ {
		diff := y.AtVec(i) - mean
		tss += diff * diff
	}
	if tss == 0 {
		return 0, errConstantColumn
	}

	beta, err := leastSquares(x, y)
	if err != nil {
		return 0, err
	}
	var fitted, resid mat.VecDense
	fitted.MulVec(x, beta)
	resid.SubVec(y, &fitted)
	return 1 - mat.Dot(&resid, &resid)/tss, nil
}
