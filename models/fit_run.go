package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"goattrib/domain/core"
	"goattrib/domain/model"
)

// CoefficientMap is a custom type for PostgreSQL JSONB columns holding
// coefficients keyed by name
type CoefficientMap map[string]float64

// Value implements driver.Valuer interface
func (c CoefficientMap) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface
func (c *CoefficientMap) Scan(value interface{}) error {
	if value == nil {
		*c = make(CoefficientMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CoefficientMap", value)
	}

	result := make(CoefficientMap)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*c = result
	return nil
}

// FitRun is one persisted fit, kept as history per session
type FitRun struct {
	ID                 core.FitRunID  `db:"id" json:"id"`
	SessionID          core.SessionID `db:"session_id" json:"session_id"`
	Generation         int64          `db:"generation" json:"generation"`
	Method             string         `db:"method" json:"method"`
	Alpha              float64        `db:"alpha" json:"alpha"`
	Observations       int            `db:"observations" json:"observations"`
	RSquared           float64        `db:"r_squared" json:"r_squared"`
	AdjRSquared        *float64       `db:"adj_r_squared" json:"adj_r_squared"`
	AIC                *float64       `db:"aic" json:"aic"`
	BIC                *float64       `db:"bic" json:"bic"`
	Coefficients       CoefficientMap `db:"coefficients" json:"coefficients"`
	DatasetFingerprint string         `db:"dataset_fingerprint" json:"dataset_fingerprint"`
	BootstrapSamples   int            `db:"bootstrap_samples" json:"bootstrap_samples"`
	DurationMs         int64          `db:"duration_ms" json:"duration_ms"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// NewFitRun captures the persisted part of a fit result
func NewFitRun(sessionID core.SessionID, result *model.FitResult) *FitRun {
	return &FitRun{
		ID:                 core.NewFitRunID(),
		SessionID:          sessionID,
		Generation:         int64(result.Generation),
		Method:             string(result.Method),
		Alpha:              result.Alpha,
		Observations:       result.NObs,
		RSquared:           result.RSquared,
		AdjRSquared:        definedOrNil(result.AdjRSquared),
		AIC:                definedOrNil(result.AIC),
		BIC:                definedOrNil(result.BIC),
		Coefficients:       CoefficientMap(result.Coefficients),
		DatasetFingerprint: result.DatasetFingerprint,
		BootstrapSamples:   result.Bootstrap.Used,
		DurationMs:         result.DurationMs,
		CreatedAt:          time.Now().UTC(),
	}
}

func definedOrNil(s model.Stat) *float64 {
	if s.IsUndefined() {
		return nil
	}
	v := float64(s)
	return &v
}
