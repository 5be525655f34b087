package scenario

import (
	"errors"
	"math"
	"testing"

	"goattrib/domain/core"
	"goattrib/domain/model"
	"goattrib/internal/preprocess"
	"goattrib/internal/regression"
	"goattrib/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// handDesign returns a design with means tv=100, radio=50 and a model
// y = 10 + 2·tv + 4·radio, so the baseline prediction is 410.
func handDesign() (*model.FittedModel, *regression.Design) {
	x := mat.NewDense(2, 3, []float64{
		1, 90, 40,
		1, 110, 60,
	})
	d := &regression.Design{
		X:            x,
		Y:            mat.NewVecDense(2, []float64{0, 0}),
		Names:        []string{"const", "tv", "radio"},
		FeatureCount: 2,
	}
	fit := &model.FittedModel{
		Names:        d.Names,
		Coefficients: map[string]float64{"const": 10, "tv": 2, "radio": 4},
	}
	return fit, d
}

func TestSimulate_EmptyChanges(t *testing.T) {
	fit, d := handDesign()
	s := New(fit, d, 3)

	res, err := s.Simulate(nil)
	require.NoError(t, err)

	assert.Equal(t, 410.0, res.BaselinePrediction)
	assert.Equal(t, 410.0, res.ScenarioPrediction)
	assert.Equal(t, 0.0, res.Delta)
	assert.Equal(t, 0.0, res.DeltaPercentage)
	assert.Empty(t, res.ChangesApplied)
	assert.Equal(t, uint64(3), res.Generation)
	assert.Equal(t, 200.0, res.Contributions["tv"])
	assert.Equal(t, 10.0, res.Contributions["const"])
}

func TestSimulate_PercentageChange(t *testing.T) {
	fit, d := handDesign()
	s := New(fit, d, 1)

	res, err := s.Simulate(map[string]float64{"tv": 10, "radio": -50})
	require.NoError(t, err)

	// tv 100 -> 110 (+20), radio 50 -> 25 (-100)
	assert.InDelta(t, 330.0, res.ScenarioPrediction, 1e-9)
	assert.InDelta(t, -80.0, res.Delta, 1e-9)
	assert.InDelta(t, -80.0/410.0*100, res.DeltaPercentage, 1e-9)
	assert.Equal(t, map[string]float64{"tv": 10, "radio": -50}, res.ChangesApplied)
}

func TestSimulate_UnknownFeature(t *testing.T) {
	fit, d := handDesign()
	s := New(fit, d, 1)
	means, before := s.Baseline()

	_, err := s.Simulate(map[string]float64{"tv": 10, "zz_unknown": 5, "b_unknown": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownFeature))
	assert.Contains(t, err.Error(), `"b_unknown"`)

	meansAfter, after := s.Baseline()
	assert.Equal(t, means, meansAfter)
	assert.Equal(t, before, after)

	res, err := s.Simulate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Delta)
}

func TestSimulate_NonFinite(t *testing.T) {
	fit, d := handDesign()
	s := New(fit, d, 1)

	_, err := s.Simulate(map[string]float64{"tv": math.NaN()})
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	_, err = s.Simulate(map[string]float64{"tv": math.Inf(-1)})
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestSimulate_ZeroBaseline(t *testing.T) {
	fit, d := handDesign()
	fit.Coefficients = map[string]float64{"const": -410, "tv": 2, "radio": 4}
	s := New(fit, d, 1)

	res, err := s.Simulate(map[string]float64{"tv": 50})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.BaselinePrediction)
	assert.Equal(t, 100.0, res.Delta)
	assert.Equal(t, 0.0, res.DeltaPercentage)
}

// TestSimulate_MoreSpendMoreSales checks the sign of a spend increase on
// data generated with positive channel effects.
func TestSimulate_MoreSpendMoreSales(t *testing.T) {
	data := testkit.NewMarketingDataGenerator(testkit.TwoChannelConfig()).Generate()
	ds, _, err := preprocess.NewPreprocessor(0, nil).Load(data.Table(), data.Mapping())
	require.NoError(t, err)
	d, err := regression.BuildDesign(ds)
	require.NoError(t, err)
	fit, _, err := regression.FitOLS(d)
	require.NoError(t, err)

	s := New(fit, d, 1)
	res, err := s.Simulate(map[string]float64{"Channel_A": 10})
	require.NoError(t, err)
	assert.Greater(t, res.Delta, 0.0)
	assert.Greater(t, res.DeltaPercentage, 0.0)

	_, err = s.Simulate(map[string]float64{"Sales": 10})
	assert.True(t, errors.Is(err, core.ErrUnknownFeature))
}
