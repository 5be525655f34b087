package app

import (
	"context"
	"fmt"
	"time"

	"goattrib/adapters/report"
	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal"
	"goattrib/internal/config"
	"goattrib/internal/metrics"
	"goattrib/internal/preprocess"
	"goattrib/internal/regression"
	"goattrib/internal/session"
	"goattrib/models"
	"goattrib/ports"

	"github.com/montanaflynn/stats"
)

const (
	// DefaultRidgeAlpha is used when a ridge fit does not name alpha
	DefaultRidgeAlpha = 1.0
	// DefaultBootstrapSamples is used when a fit does not name a sample count
	DefaultBootstrapSamples = 1000

	historyTimeout = 5 * time.Second
)

// AttributionService runs load / fit / simulate over isolated sessions
type AttributionService struct {
	store        *session.Store
	preprocessor *preprocess.Preprocessor
	config       *config.Config
	metrics      *metrics.Registry
	history      ports.FitRunRepository
	logger       *internal.Logger
}

// NewAttributionService wires the service. history and reg may be nil.
func NewAttributionService(cfg *config.Config, history ports.FitRunRepository, reg *metrics.Registry, logger *internal.Logger) *AttributionService {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &AttributionService{
		store:        session.NewStore(),
		preprocessor: preprocess.NewPreprocessor(cfg.Limits.MaxRows, logger),
		config:       cfg,
		metrics:      reg,
		history:      history,
		logger:       logger.With("attribution"),
	}
}

// CreateSession opens a new empty session
func (s *AttributionService) CreateSession() core.SessionID {
	sess := s.store.Create()
	s.metrics.SetActiveSessions(s.store.Len())
	s.logger.Info("[AttributionService] Created session %s", sess.ID)
	return sess.ID
}

// DeleteSession drops a session and everything it holds
func (s *AttributionService) DeleteSession(id core.SessionID) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.metrics.SetActiveSessions(s.store.Len())
	return nil
}

// EvictIdle removes sessions unused for maxIdle
func (s *AttributionService) EvictIdle(maxIdle time.Duration) int {
	removed := s.store.EvictIdle(maxIdle)
	if removed > 0 {
		s.metrics.SetActiveSessions(s.store.Len())
		s.logger.Info("[AttributionService] Evicted %d idle sessions", removed)
	}
	return removed
}

// LoadDataset validates and cleans table, then replaces the session dataset.
// Any previous fit is discarded. On error the session is left unchanged.
func (s *AttributionService) LoadDataset(ctx context.Context, id core.SessionID, table *dataset.Table, mapping dataset.ColumnMapping) (*dataset.Status, []model.Warning, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ds, warnings, err := s.preprocessor.Load(table, mapping)
	s.metrics.RecordLoad(err)
	if err != nil {
		s.logger.Warn("[AttributionService] Load rejected for session %s: %v", id, err)
		return nil, nil, err
	}

	var status *dataset.Status
	err = sess.Do(func(st *session.State) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		st.ReplaceDataset(ds)
		status = dataset.NewStatus(ds, false)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("[AttributionService] Session %s loaded %d observations (%s)", id, ds.Len(), ds.Fingerprint)
	return status, warnings, nil
}

// Fit estimates the model on the session dataset and installs it together
// with a fresh simulator. Fails with core.ErrNoData before any load.
func (s *AttributionService) Fit(ctx context.Context, id core.SessionID, req model.FitRequest) (*model.FitResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	method, alpha, samples, seed, err := s.resolveRequest(req)
	if err != nil {
		return nil, err
	}

	var result *model.FitResult
	err = sess.Do(func(st *session.State) error {
		if st.Dataset == nil {
			return core.ErrNoData
		}
		start := time.Now()

		// 1. Design matrix
		design, err := regression.BuildDesign(st.Dataset)
		if err != nil {
			return err
		}

		// 2. Estimator
		fitted, warnings, err := regression.Fit(design, method, alpha)
		s.metrics.RecordFit(string(method), err, time.Since(start))
		if err != nil {
			return err
		}

		// 3. Collinearity diagnostics
		vif, vifWarnings := regression.AnalyzeVIF(design)
		warnings = append(warnings, vifWarnings...)
		high := vif.HighVIF(s.config.Model.VIFThreshold)
		for _, name := range design.PredictorNames() {
			if v, ok := high[name]; ok {
				warnings = append(warnings, model.NewWarning(model.WarningHighVIF, name,
					"VIF %.2f exceeds %.0f", float64(v), s.config.Model.VIFThreshold))
			}
		}

		// 4. Coefficient intervals
		ci, bootStats, bootWarnings, err := regression.Bootstrap(ctx, design, regression.BootstrapOptions{
			Samples:    samples,
			Seed:       seed,
			Workers:    s.config.Model.BootstrapWorkers,
			MaxSamples: s.config.Limits.MaxBootstrapSamples,
			Metrics:    s.metrics,
			Logger:     s.logger,
		})
		if err != nil {
			return err
		}
		warnings = append(warnings, bootWarnings...)

		result = &model.FitResult{
			FittedModel:        fitted,
			VIF:                vif,
			HighVIFAlert:       high,
			BootstrapCI:        ci,
			Bootstrap:          bootStats,
			Warnings:           warnings,
			DatasetFingerprint: st.Dataset.Fingerprint.String(),
		}
		result.ResidualsMean, result.ResidualsStd = moments(fitted.Residuals)
		result.DurationMs = time.Since(start).Milliseconds()

		// 5. Install; the previous fit and simulator are superseded
		st.InstallFit(design, result)
		return nil
	})
	if err != nil {
		s.logger.Warn("[AttributionService] Fit failed for session %s: %v", id, err)
		return nil, err
	}

	s.logger.Info("[AttributionService] Session %s fitted %s generation %d (R²=%.4f, %d warnings, %dms)",
		id, method, result.Generation, result.RSquared, len(result.Warnings), result.DurationMs)
	s.recordFitRun(ctx, id, result)
	return result, nil
}

func (s *AttributionService) resolveRequest(req model.FitRequest) (model.Method, float64, int, int64, error) {
	method, err := model.ParseMethod(string(req.Method))
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("%w: %v", core.ErrInvalidParameter, err)
	}

	alpha := DefaultRidgeAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if method == model.MethodOLS {
		alpha = 0
	}

	samples := DefaultBootstrapSamples
	if req.BootstrapSamples != nil {
		samples = *req.BootstrapSamples
	}
	if samples < 0 {
		return "", 0, 0, 0, core.NewInvalidParameterError("bootstrap_samples", fmt.Sprintf("must be >= 0, got %d", samples))
	}

	seed := s.config.Model.BootstrapSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	return method, alpha, samples, seed, nil
}

// recordFitRun appends the fit to history. Failures are logged and counted
// and never fail the fit.
func (s *AttributionService) recordFitRun(ctx context.Context, id core.SessionID, result *model.FitResult) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	if err := s.history.SaveFitRun(ctx, models.NewFitRun(id, result)); err != nil {
		s.metrics.RecordFitRunFailure()
		s.logger.Error("[AttributionService] Failed to record fit run for session %s: %v", id, err)
	}
}

// Simulate projects percentage changes of predictors against the current fit
func (s *AttributionService) Simulate(ctx context.Context, id core.SessionID, changes map[string]float64) (*model.ScenarioResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *model.ScenarioResult
	err = sess.Do(func(st *session.State) error {
		sim, err := st.Simulator()
		if err != nil {
			return err
		}
		result, err = sim.Simulate(changes)
		return err
	})
	s.metrics.RecordSimulation(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Status summarises the session dataset. Fails with core.ErrNoData when
// nothing is loaded.
func (s *AttributionService) Status(ctx context.Context, id core.SessionID) (*dataset.Status, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	var status *dataset.Status
	err = sess.Do(func(st *session.State) error {
		if st.Dataset == nil {
			return core.ErrNoData
		}
		status = dataset.NewStatus(st.Dataset, st.Fit != nil)
		return nil
	})
	return status, err
}

// CurrentFit returns the installed fit
func (s *AttributionService) CurrentFit(ctx context.Context, id core.SessionID) (*model.FitResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	var fit *model.FitResult
	err = sess.Do(func(st *session.State) error {
		if st.Fit == nil {
			return core.ErrModelNotFitted
		}
		fit = st.Fit
		return nil
	})
	return fit, err
}

// ResidualMetrics summarises residuals and fitted values of the current fit
func (s *AttributionService) ResidualMetrics(ctx context.Context, id core.SessionID) (*model.ResidualMetrics, error) {
	fit, err := s.CurrentFit(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &model.ResidualMetrics{Observations: fit.NObs}
	out.ResidualsMean, out.ResidualsStd = moments(fit.Residuals)
	out.FittedMean, out.FittedStd = moments(fit.FittedValues)
	return out, nil
}

// Report renders the current fit as markdown or HTML
func (s *AttributionService) Report(ctx context.Context, id core.SessionID, format report.Format) ([]byte, error) {
	fit, err := s.CurrentFit(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.Render(fit, format)
}

// FitHistory lists persisted fits of a session, newest first. Returns an
// empty list when no history repository is configured.
func (s *AttributionService) FitHistory(ctx context.Context, id core.SessionID, limit int) ([]*models.FitRun, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []*models.FitRun{}, nil
	}
	return s.history.ListBySession(ctx, id, limit)
}

// SessionCount returns the number of live sessions
func (s *AttributionService) SessionCount() int {
	return s.store.Len()
}

// moments returns the mean and population standard deviation, 0 where undefined
func moments(values []float64) (float64, float64) {
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, 0
	}
	std, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return mean, 0
	}
	return mean, std
}
