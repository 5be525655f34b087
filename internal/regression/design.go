// Package regression builds design matrices and fits linear models over
// them: OLS and Ridge estimation, variance inflation factors and bootstrap
// confidence intervals.
package regression

import (
	"fmt"

	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal/preprocess"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Design is the regression input derived from a Dataset.
// INVARIANTS:
// - column 0 of X is the constant 1
// - columns 1..FeatureCount are features, the rest are controls
// - Names[i] labels column i of X
type Design struct {
	X            *mat.Dense
	Y            *mat.VecDense
	Names        []string
	FeatureCount int
}

// BuildDesign assembles [const, features.., controls..] from ds
func BuildDesign(ds *dataset.Dataset) (*Design, error) {
	if ds == nil {
		return nil, core.ErrNoData
	}
	n := ds.Len()
	predictors := ds.Predictors()
	if required := preprocess.RequiredObservations(len(predictors)); n < required {
		return nil, core.NewInsufficientObservationsError(n, required)
	}

	k := 1 + len(predictors)
	x := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for j, col := range predictors {
		if len(col) != n {
			return nil, fmt.Errorf("%w: column %d has %d values, expected %d",
				core.ErrValidation, j, len(col), n)
		}
		x.SetCol(j+1, col)
	}

	names := make([]string, 0, k)
	names = append(names, model.ConstName)
	names = append(names, ds.PredictorNames()...)

	return &Design{
		X:            x,
		Y:            mat.NewVecDense(n, append([]float64(nil), ds.Target...)),
		Names:        names,
		FeatureCount: len(ds.FeatureColumns),
	}, nil
}

// Dims returns the observation count and the column count including the constant
func (d *Design) Dims() (int, int) {
	return d.X.Dims()
}

// PredictorNames returns the names of the non-constant columns
func (d *Design) PredictorNames() []string {
	return d.Names[1:]
}

// ColumnMeans returns the mean of every non-constant column, keyed by name
func (d *Design) ColumnMeans() map[string]float64 {
	_, k := d.Dims()
	means := make(map[string]float64, k-1)
	for j := 1; j < k; j++ {
		means[d.Names[j]] = stat.Mean(mat.Col(nil, j, d.X), nil)
	}
	return means
}

// Resample returns a design built from the given row indices
func (d *Design) Resample(rows []int) *Design {
	_, k := d.Dims()
	x := mat.NewDense(len(rows), k, nil)
	y := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		x.SetRow(i, d.X.RawRowView(r))
		y.SetVec(i, d.Y.AtVec(r))
	}
	return &Design{X: x, Y: y, Names: d.Names, FeatureCount: d.FeatureCount}
}
