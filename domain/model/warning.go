package model

import "fmt"

// WarningKind classifies a failure that was absorbed locally instead of
// failing the surrounding operation
type WarningKind string

const (
	WarningDegenerateSubRegression WarningKind = "degenerate_sub_regression"
	WarningResampleFailure         WarningKind = "resample_failure"
	WarningBootstrapClamped        WarningKind = "bootstrap_clamped"
	WarningBootstrapEmpty          WarningKind = "bootstrap_empty"
	WarningConstantTarget          WarningKind = "constant_target"
	WarningColumnAllMissing        WarningKind = "column_all_missing"
	WarningHighVIF                 WarningKind = "high_vif"
)

// Warning is a locally absorbed failure surfaced next to a result
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

// NewWarning builds a warning with a formatted message
func NewWarning(kind WarningKind, subject, format string, args ...interface{}) Warning {
	return Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", w.Kind, w.Subject, w.Message)
}
