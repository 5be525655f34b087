package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Method selects the estimator used by a fit
type Method string

const (
	MethodOLS   Method = "ols"
	MethodRidge Method = "ridge"
)

// ParseMethod accepts "ols", "ridge" and the empty string (OLS), case-insensitively
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ols", "none":
		return MethodOLS, nil
	case "ridge":
		return MethodRidge, nil
	}
	return "", fmt.Errorf("unknown fit method %q", s)
}

// ConstName is the coefficient name of the intercept column
const ConstName = "const"

// Stat is a float64 that serialises NaN and ±Inf as JSON null
type Stat float64

// IsUndefined reports whether the value is NaN or infinite
func (s Stat) IsUndefined() bool {
	f := float64(s)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

func (s Stat) MarshalJSON() ([]byte, error) {
	if s.IsUndefined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(s))
}

func (s *Stat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Stat(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Stat(f)
	return nil
}

// FittedModel is the uniform result of an OLS or Ridge fit.
// PValues, StdErrors and TStats carry entries only where frequentist
// inference is valid: for Ridge every p-value is nil.
type FittedModel struct {
	Method Method  `json:"method"`
	Alpha  float64 `json:"alpha,omitempty"`

	Names        []string           `json:"names"`
	Coefficients map[string]float64 `json:"coefficients"`
	PValues      map[string]*Stat   `json:"p_values"`
	StdErrors    map[string]Stat    `json:"std_errors,omitempty"`
	TStats       map[string]Stat    `json:"t_stats,omitempty"`

	RSquared    float64 `json:"r_squared"`
	AdjRSquared Stat    `json:"adjusted_r_squared"`
	AIC         Stat    `json:"aic"`
	BIC         Stat    `json:"bic"`
	FStatistic  Stat    `json:"f_statistic"`
	FPValue     Stat    `json:"f_pvalue"`
	NObs        int     `json:"observations"`
	DFResidual  int     `json:"df_residual"`

	FittedValues []float64 `json:"fitted_values"`
	Residuals    []float64 `json:"residuals"`

	// Approximate is set when the summary statistics reuse OLS formulas
	// for an estimator they were not derived for.
	Approximate   bool   `json:"approximate"`
	InferenceNote string `json:"inference_note,omitempty"`
}

// CoefficientVector returns coefficients in design column order
func (m *FittedModel) CoefficientVector() []float64 {
	out := make([]float64, len(m.Names))
	for i, name := range m.Names {
		out[i] = m.Coefficients[name]
	}
	return out
}

// VIFReport maps feature names to variance inflation factors. NaN marks a
// degenerate sub-regression.
type VIFReport map[string]Stat

// HighVIF returns the entries strictly above threshold
func (r VIFReport) HighVIF(threshold float64) map[string]Stat {
	out := make(map[string]Stat)
	for name, v := range r {
		if !v.IsUndefined() && float64(v) > threshold {
			out[name] = v
		}
	}
	return out
}

// Interval is a closed confidence interval, serialised as [lower, upper]
type Interval struct {
	Lower float64
	Upper float64
}

func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{iv.Lower, iv.Upper})
}

func (iv *Interval) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	iv.Lower, iv.Upper = pair[0], pair[1]
	return nil
}

// BootstrapCI maps coefficient names to 95% percentile intervals
type BootstrapCI map[string]Interval

// BootstrapStats describes how a bootstrap run went
type BootstrapStats struct {
	Requested int   `json:"requested"`
	Used      int   `json:"used"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Clamped   bool  `json:"clamped"`
	Seed      int64 `json:"seed"`
	Workers   int   `json:"workers"`
}

// FitRequest carries caller parameters; nil fields take service defaults
type FitRequest struct {
	Method           Method   `json:"method"`
	Alpha            *float64 `json:"alpha,omitempty"`
	BootstrapSamples *int     `json:"bootstrap_samples,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
}

// FitResult bundles a fitted model with its diagnostics
type FitResult struct {
	*FittedModel

	VIF          VIFReport       `json:"vif_values"`
	HighVIFAlert map[string]Stat `json:"high_vif_alert,omitempty"`
	BootstrapCI  BootstrapCI     `json:"bootstrap_ci"`
	Bootstrap    BootstrapStats  `json:"bootstrap"`

	ResidualsMean float64 `json:"residuals_mean"`
	ResidualsStd  float64 `json:"residuals_std"`

	Warnings           []Warning `json:"warnings,omitempty"`
	DatasetFingerprint string    `json:"dataset_fingerprint"`
	Generation         uint64    `json:"generation"`
	DurationMs         int64     `json:"duration_ms"`
}

// ScenarioResult is the projection of a what-if change at the feature means
type ScenarioResult struct {
	BaselinePrediction float64            `json:"baseline_prediction"`
	ScenarioPrediction float64            `json:"scenario_prediction"`
	Delta              float64            `json:"delta"`
	DeltaPercentage    float64            `json:"delta_percentage"`
	ChangesApplied     map[string]float64 `json:"changes_applied"`
	Contributions      map[string]float64 `json:"contributions"`
	Generation         uint64             `json:"generation"`
}

// ResidualMetrics summarises the residuals and fitted values of the current fit
type ResidualMetrics struct {
	Observations  int     `json:"observations"`
	ResidualsMean float64 `json:"residuals_mean"`
	ResidualsStd  float64 `json:"residuals_std"`
	FittedMean    float64 `json:"fitted_mean"`
	FittedStd     float64 `json:"fitted_std"`
}
