package regression

import (
	"fmt"

	"goattrib/domain/core"
	"goattrib/domain/model"
)

// Fit dispatches to the estimator named by method. alpha is ignored for OLS.
func Fit(d *Design, method model.Method, alpha float64) (*model.FittedModel, []model.Warning, error) {
	switch method {
	case model.MethodOLS, "":
		return FitOLS(d)
	case model.MethodRidge:
		return FitRidge(d, alpha)
	}
	return nil, nil, core.NewInvalidParameterError("method", fmt.Sprintf("unsupported %q", method))
}
