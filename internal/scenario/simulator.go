// Package scenario projects what-if budget changes through a fitted model.
package scenario

import (
	"fmt"
	"math"
	"sort"

	"goattrib/domain/core"
	"goattrib/domain/model"
	"goattrib/internal/regression"
)

// Simulator evaluates percentage changes of predictors at their means.
// It is bound to one fit; the session rebuilds it whenever that fit is
// replaced, tracked through Generation.
type Simulator struct {
	names      []string // predictor names in design order
	coef       map[string]float64
	intercept  float64
	baseline   map[string]float64
	prediction float64
	generation uint64
}

// New builds a simulator from fit and the design it was estimated on
func New(fit *model.FittedModel, design *regression.Design, generation uint64) *Simulator {
	s := &Simulator{
		names:      append([]string(nil), design.PredictorNames()...),
		coef:       fit.Coefficients,
		intercept:  fit.Coefficients[model.ConstName],
		baseline:   design.ColumnMeans(),
		generation: generation,
	}
	s.prediction = s.predict(s.baseline)
	return s
}

// Generation returns the fit generation the simulator was built from
func (s *Simulator) Generation() uint64 {
	return s.generation
}

// Baseline returns the predictor means and the prediction at those means
func (s *Simulator) Baseline() (map[string]float64, float64) {
	out := make(map[string]float64, len(s.baseline))
	for k, v := range s.baseline {
		out[k] = v
	}
	return out, s.prediction
}

// Simulate scales each named predictor mean by (1 + pct/100) and reports
// the change in prediction. Every key is validated before anything is
// computed; unknown names fail with core.ErrUnknownFeature.
func (s *Simulator) Simulate(changes map[string]float64) (*model.ScenarioResult, error) {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := s.baseline[k]; !ok {
			return nil, core.NewUnknownFeatureError(k)
		}
		if pct := changes[k]; math.IsNaN(pct) || math.IsInf(pct, 0) {
			return nil, core.NewInvalidParameterError("changes", fmt.Sprintf("%q must be finite", k))
		}
	}

	scenario := make(map[string]float64, len(s.baseline))
	for k, v := range s.baseline {
		scenario[k] = v
	}
	applied := make(map[string]float64, len(changes))
	for _, k := range keys {
		scenario[k] = s.baseline[k] * (1 + changes[k]/100)
		applied[k] = changes[k]
	}

	predicted := s.predict(scenario)
	delta := predicted - s.prediction
	pct := 0.0
	if s.prediction != 0 {
		pct = delta / s.prediction * 100
	}

	contributions := make(map[string]float64, len(s.names)+1)
	contributions[model.ConstName] = s.intercept
	for _, name := range s.names {
		contributions[name] = s.coef[name] * scenario[name]
	}

	return &model.ScenarioResult{
		BaselinePrediction: s.prediction,
		ScenarioPrediction: predicted,
		Delta:              delta,
		DeltaPercentage:    pct,
		ChangesApplied:     applied,
		Contributions:      contributions,
		Generation:         s.generation,
	}, nil
}

func (s *Simulator) predict(values map[string]float64) float64 {
	y := s.intercept
	for _, name := range s.names {
		y += s.coef[name] * values[name]
	}
	return y
}
