package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"goattrib/adapters/report"
	"goattrib/domain/core"
	"goattrib/domain/model"
	"goattrib/internal/config"
	"goattrib/internal/metrics"
	"goattrib/internal/testkit"
	"goattrib/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryHistory struct {
	mu   sync.Mutex
	runs []*models.FitRun
	err  error
}

func (m *memoryHistory) SaveFitRun(ctx context.Context, run *models.FitRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryHistory) ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*models.FitRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.FitRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].SessionID == sessionID {
			out = append(out, m.runs[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryHistory) GetFitRun(ctx context.Context, id core.FitRunID) (*models.FitRun, error) {
	return nil, errors.New("not implemented")
}

func samples(n int) *int { return &n }

func newService(t *testing.T, history *memoryHistory) (*AttributionService, *metrics.Registry) {
	t.Helper()
	cfg := config.Default()
	cfg.Model.BootstrapWorkers = 4
	reg := metrics.NewRegistry()
	if history == nil {
		return NewAttributionService(cfg, nil, reg, nil), reg
	}
	return NewAttributionService(cfg, history, reg, nil), reg
}

func loadTwoChannel(t *testing.T, svc *AttributionService, id core.SessionID) {
	t.Helper()
	data := testkit.NewMarketingDataGenerator(testkit.TwoChannelConfig()).Generate()
	_, _, err := svc.LoadDataset(context.Background(), id, data.Table(), data.Mapping())
	require.NoError(t, err)
}

func TestAttributionService_BeforeLoad(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()
	ctx := context.Background()

	_, err := svc.Fit(ctx, id, model.FitRequest{})
	assert.True(t, errors.Is(err, core.ErrNoData))

	_, err = svc.Status(ctx, id)
	assert.True(t, errors.Is(err, core.ErrNoData))

	_, err = svc.Simulate(ctx, id, map[string]float64{"Channel_A": 10})
	assert.True(t, errors.Is(err, core.ErrModelNotFitted))

	_, err = svc.ResidualMetrics(ctx, id)
	assert.True(t, errors.Is(err, core.ErrModelNotFitted))

	_, err = svc.Report(ctx, id, report.FormatMarkdown)
	assert.True(t, errors.Is(err, core.ErrModelNotFitted))
}

func TestAttributionService_UnknownSession(t *testing.T) {
	svc, _ := newService(t, nil)
	id := core.NewSessionID()
	ctx := context.Background()

	_, err := svc.Fit(ctx, id, model.FitRequest{})
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
	_, err = svc.Status(ctx, id)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
	_, err = svc.FitHistory(ctx, id, 0)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
	assert.True(t, errors.Is(svc.DeleteSession(id), core.ErrSessionNotFound))
}

func TestAttributionService_EndToEnd(t *testing.T) {
	svc, reg := newService(t, nil)
	id := svc.CreateSession()
	ctx := context.Background()
	loadTwoChannel(t, svc, id)

	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 24, status.ObservationCount)
	assert.False(t, status.Fitted)

	result, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(200)})
	require.NoError(t, err)

	assert.Equal(t, model.MethodOLS, result.Method)
	assert.Equal(t, uint64(1), result.Generation)
	assert.InDelta(t, 0.5, result.Coefficients["Channel_A"], 0.3)
	assert.Greater(t, result.RSquared, 0.5)
	assert.Len(t, result.VIF, 2)
	assert.Equal(t, 200, result.Bootstrap.Used)
	assert.Equal(t, int64(42), result.Bootstrap.Seed)
	assert.Len(t, result.BootstrapCI, 4)
	assert.NotEmpty(t, result.DatasetFingerprint)
	assert.InDelta(t, 0, result.ResidualsMean, 1e-6)
	for _, name := range result.Names {
		require.NotNil(t, result.PValues[name], name)
	}

	status, err = svc.Status(ctx, id)
	require.NoError(t, err)
	assert.True(t, status.Fitted)

	sim, err := svc.Simulate(ctx, id, map[string]float64{"Channel_A": 10})
	require.NoError(t, err)
	assert.Greater(t, sim.Delta, 0.0)
	assert.Equal(t, uint64(1), sim.Generation)
	assert.Equal(t, map[string]float64{"Channel_A": 10}, sim.ChangesApplied)

	_, err = svc.Simulate(ctx, id, map[string]float64{"Channel_Z": 10})
	assert.True(t, errors.Is(err, core.ErrUnknownFeature))

	rm, err := svc.ResidualMetrics(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 24, rm.Observations)
	assert.Greater(t, rm.ResidualsStd, 0.0)
	assert.Greater(t, rm.FittedMean, 0.0)

	md, err := svc.Report(ctx, id, report.FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "| Channel_A |")

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FitsTotal.WithLabelValues("ols", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatasetsLoaded.WithLabelValues("ok")))
}

func TestAttributionService_Ridge(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()
	loadTwoChannel(t, svc, id)

	alpha := 5.0
	result, err := svc.Fit(context.Background(), id, model.FitRequest{
		Method:           model.MethodRidge,
		Alpha:            &alpha,
		BootstrapSamples: samples(0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.MethodRidge, result.Method)
	assert.Equal(t, 5.0, result.Alpha)
	assert.True(t, result.Approximate)
	for _, p := range result.PValues {
		assert.Nil(t, p)
	}
	assert.Empty(t, result.BootstrapCI)
}

func TestAttributionService_InvalidRequest(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()
	loadTwoChannel(t, svc, id)
	ctx := context.Background()

	_, err := svc.Fit(ctx, id, model.FitRequest{Method: "lasso"})
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	_, err = svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(-1)})
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	alpha := -1.0
	_, err = svc.Fit(ctx, id, model.FitRequest{Method: model.MethodRidge, Alpha: &alpha})
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestAttributionService_ReloadInvalidatesFit(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()
	ctx := context.Background()
	loadTwoChannel(t, svc, id)

	_, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(0)})
	require.NoError(t, err)

	loadTwoChannel(t, svc, id)
	_, err = svc.Simulate(ctx, id, map[string]float64{"Channel_A": 10})
	assert.True(t, errors.Is(err, core.ErrModelNotFitted))

	result, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(0)})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Generation)
}

func TestAttributionService_FailedLoadKeepsState(t *testing.T) {
	svc, reg := newService(t, nil)
	id := svc.CreateSession()
	ctx := context.Background()
	loadTwoChannel(t, svc, id)
	_, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(0)})
	require.NoError(t, err)

	data := testkit.NewMarketingDataGenerator(testkit.TwoChannelConfig()).Generate()
	mapping := data.Mapping()
	mapping.FeatureColumns = append(mapping.FeatureColumns, "Missing")
	_, _, err = svc.LoadDataset(ctx, id, data.Table(), mapping)
	assert.True(t, errors.Is(err, core.ErrMissingColumns))

	_, err = svc.Simulate(ctx, id, map[string]float64{"Channel_A": 10})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatasetsLoaded.WithLabelValues("error")))
}

func TestAttributionService_History(t *testing.T) {
	history := &memoryHistory{}
	svc, _ := newService(t, history)
	id := svc.CreateSession()
	ctx := context.Background()
	loadTwoChannel(t, svc, id)

	for i := 0; i < 2; i++ {
		_, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(10)})
		require.NoError(t, err)
	}

	runs, err := svc.FitHistory(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(2), runs[0].Generation)
	assert.Equal(t, "ols", runs[0].Method)
	assert.Equal(t, 10, runs[0].BootstrapSamples)
}

func TestAttributionService_HistoryFailureDoesNotFailFit(t *testing.T) {
	history := &memoryHistory{err: errors.New("database unavailable")}
	svc, reg := newService(t, history)
	id := svc.CreateSession()
	loadTwoChannel(t, svc, id)

	_, err := svc.Fit(context.Background(), id, model.FitRequest{BootstrapSamples: samples(0)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FitRunRecordFails))
}

func TestAttributionService_NoHistoryConfigured(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()

	runs, err := svc.FitHistory(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAttributionService_ConcurrentSessions(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	ids := make([]core.SessionID, 4)
	for i := range ids {
		ids[i] = svc.CreateSession()
		loadTwoChannel(t, svc, ids[i])
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for _, id := range ids {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(id core.SessionID) {
				defer wg.Done()
				if _, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(20)}); err != nil {
					errs <- err
					return
				}
				if _, err := svc.Simulate(ctx, id, map[string]float64{"Channel_B": -5}); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	for _, id := range ids {
		fit, err := svc.CurrentFit(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), fit.Generation)
	}
}

func TestAttributionService_DeleteAndEvict(t *testing.T) {
	svc, reg := newService(t, nil)
	a := svc.CreateSession()
	svc.CreateSession()
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.ActiveSessions))

	require.NoError(t, svc.DeleteSession(a))
	assert.Equal(t, 1, svc.SessionCount())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, svc.EvictIdle(time.Millisecond))
	assert.Equal(t, 0, svc.SessionCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.ActiveSessions))
}

func TestMoments_PopulationStd(t *testing.T) {
	mean, std := moments([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 2.0, std)

	mean, std = moments(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestAttributionService_ResidualMetricsUsePopulationStd(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()
	ctx := context.Background()
	loadTwoChannel(t, svc, id)

	result, err := svc.Fit(ctx, id, model.FitRequest{BootstrapSamples: samples(0)})
	require.NoError(t, err)

	sumSq := 0.0
	for _, r := range result.Residuals {
		diff := r - result.ResidualsMean
		sumSq += diff * diff
	}
	want := math.Sqrt(sumSq / float64(len(result.Residuals)))

	rm, err := svc.ResidualMetrics(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, want, rm.ResidualsStd, 1e-9)
	assert.InDelta(t, want, result.ResidualsStd, 1e-9)
	assert.Equal(t, 24, rm.Observations)
}

func TestAttributionService_LoadCancelled(t *testing.T) {
	svc, _ := newService(t, nil)
	id := svc.CreateSession()
	data := testkit.NewMarketingDataGenerator(testkit.TwoChannelConfig()).Generate()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.LoadDataset(ctx, id, data.Table(), data.Mapping())
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = svc.Status(context.Background(), id)
	assert.True(t, errors.Is(err, core.ErrNoData))
}
