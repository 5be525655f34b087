package regression

import (
	"fmt"
	"math"

	"goattrib/domain/core"
	"goattrib/domain/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxCondition is the largest condition number of the column-scaled X
// accepted by OLS. Exactly collinear columns push the estimate to ~1e16 or +Inf.
const maxCondition = 1e12

// lsFit is a least-squares solution over X with every column scaled to
// unit length, so the condition check measures collinearity rather than
// the units the columns happen to be recorded in.
type lsFit struct {
	beta  *mat.VecDense
	qr    mat.QR
	scale []float64
}

func solveScaled(x *mat.Dense, y *mat.VecDense) (*lsFit, error) {
	n, k := x.Dims()
	fit := &lsFit{scale: make([]float64, k)}
	xs := mat.NewDense(n, k, nil)
	for j := 0; j < k; j++ {
		col := mat.Col(nil, j, x)
		norm := floats.Norm(col, 2)
		if norm == 0 {
			norm = 1
		}
		fit.scale[j] = norm
		floats.Scale(1/norm, col)
		xs.SetCol(j, col)
	}

	fit.qr.Factorize(xs)
	if c := fit.qr.Cond(); math.IsNaN(c) || c > maxCondition {
		return nil, fmt.Errorf("%w: condition number %.3g", core.ErrSingularDesign, c)
	}

	var beta mat.VecDense
	if err := fit.qr.SolveVecTo(&beta, false, y); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularDesign, err)
	}
	for j := 0; j < k; j++ {
		beta.SetVec(j, beta.AtVec(j)/fit.scale[j])
	}
	fit.beta = &beta
	return fit, nil
}

// covDiag returns the diagonal of (XᵀX)⁻¹ from the R factor as R⁻¹R⁻ᵀ,
// undoing the column scaling
func (f *lsFit) covDiag() ([]float64, error) {
	k := len(f.scale)
	var r mat.Dense
	f.qr.RTo(&r)
	upper := mat.NewTriDense(k, mat.Upper, nil)
	upper.Copy(r.Slice(0, k, 0, k))

	var rInv mat.TriDense
	if err := rInv.InverseTri(upper); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularDesign, err)
	}
	var inv mat.SymDense
	inv.SymOuterK(1, &rInv)

	diag := make([]float64, k)
	for j := range diag {
		diag[j] = inv.At(j, j) / (f.scale[j] * f.scale[j])
	}
	return diag, nil
}

// leastSquares solves min ||y - Xb||² by QR decomposition
func leastSquares(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	fit, err := solveScaled(x, y)
	if err != nil {
		return nil, err
	}
	return fit.beta, nil
}

// FitOLS fits ordinary least squares with full frequentist inference
func FitOLS(d *Design) (*model.FittedModel, []model.Warning, error) {
	n, k := d.Dims()
	if n < k {
		return nil, nil, core.NewInsufficientObservationsError(n, k)
	}

	ls, err := solveScaled(d.X, d.Y)
	if err != nil {
		return nil, nil, err
	}
	beta := ls.beta
	covDiag, err := ls.covDiag()
	if err != nil {
		return nil, nil, err
	}

	m, warnings := summarize(d, beta)
	m.Method = model.MethodOLS
	m.PValues = make(map[string]*model.Stat, k)
	m.StdErrors = make(map[string]model.Stat, k)
	m.TStats = make(map[string]model.Stat, k)

	df := n - k
	sigma2 := math.NaN()
	if df > 0 {
		sigma2 = rss(m.Residuals) / float64(df)
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}

	for i, name := range d.Names {
		se := math.Sqrt(sigma2 * covDiag[i])
		t := beta.AtVec(i) / se
		p := math.NaN()
		if df > 0 && !math.IsNaN(t) {
			// two-sided
			p = 2 * tDist.Survival(math.Abs(t))
		}
		pv := model.Stat(p)
		m.PValues[name] = &pv
		m.StdErrors[name] = model.Stat(se)
		m.TStats[name] = model.Stat(t)
	}

	return m, warnings, nil
}

// summarize derives fitted values, residuals and the summary statistics
// shared by every estimator, with k = coefficient count
func summarize(d *Design, beta *mat.VecDense) (*model.FittedModel, []model.Warning) {
	n, k := d.Dims()

	var fitted mat.VecDense
	fitted.MulVec(d.X, beta)
	var resid mat.VecDense
	resid.SubVec(d.Y, &fitted)

	m := &model.FittedModel{
		Names:        append([]string(nil), d.Names...),
		Coefficients: make(map[string]float64, k),
		NObs:         n,
		DFResidual:   n - k,
		FittedValues: append([]float64(nil), fitted.RawVector().Data...),
		Residuals:    append([]float64(nil), resid.RawVector().Data...),
	}
	for i, name := range d.Names {
		m.Coefficients[name] = beta.AtVec(i)
	}

	var warnings []model.Warning
	ssr := rss(m.Residuals)
	yMean := mat.Sum(d.Y) / float64(n)
	tss := 0.0
	for i := 0; i < n; i++ {
		diff := d.Y.AtVec(i) - yMean
		tss += diff * diff
	}

	if tss == 0 {
		warnings = append(warnings, model.NewWarning(model.WarningConstantTarget, "",
			"target is constant; R² reported as 0"))
		m.RSquared = 0
	} else {
		m.RSquared = math.Min(1, math.Max(0, 1-ssr/tss))
	}

	nf, kf := float64(n), float64(k)
	m.AdjRSquared = model.Stat(math.NaN())
	if n > k {
		m.AdjRSquared = model.Stat(1 - (1-m.RSquared)*(nf-1)/(nf-kf))
	}
	m.AIC = model.Stat(nf*math.Log(ssr/nf) + 2*kf)
	m.BIC = model.Stat(nf*math.Log(ssr/nf) + math.Log(nf)*kf)

	m.FStatistic = model.Stat(math.NaN())
	m.FPValue = model.Stat(math.NaN())
	if k > 1 && n > k && tss > 0 {
		f := ((tss - ssr) / (kf - 1)) / (ssr / (nf - kf))
		m.FStatistic = model.Stat(f)
		if !math.IsNaN(f) {
			m.FPValue = model.Stat(distuv.F{D1: kf - 1, D2: nf - kf}.Survival(f))
		}
	}

	return m, warnings
}

func rss(residuals []float64) float64 {
	sum := 0.0
	for _, r := range residuals {
		sum += r * r
	}
	return sum
}
