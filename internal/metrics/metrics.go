// Package metrics exposes Prometheus collectors for fits and bootstrap runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all goattrib collectors on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	FitsTotal         *prometheus.CounterVec
	FitDuration       *prometheus.HistogramVec
	BootstrapSamples  *prometheus.CounterVec
	BootstrapClamped  prometheus.Counter
	SimulationsTotal  *prometheus.CounterVec
	DatasetsLoaded    *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	FitRunRecordFails prometheus.Counter
}

// NewRegistry creates and registers every collector
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		FitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goattrib_fits_total",
				Help: "Total number of model fits by method and result",
			},
			[]string{"method", "result"},
		),

		FitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goattrib_fit_duration_seconds",
				Help:    "Duration of a full fit including VIF and bootstrap",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),

		BootstrapSamples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goattrib_bootstrap_resamples_total",
				Help: "Bootstrap resamples by outcome",
			},
			[]string{"outcome"},
		),

		BootstrapClamped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "goattrib_bootstrap_clamped_total",
				Help: "Bootstrap requests reduced to the sample cap",
			},
		),

		SimulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goattrib_simulations_total",
				Help: "Scenario simulations by result",
			},
			[]string{"result"},
		),

		DatasetsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goattrib_datasets_loaded_total",
				Help: "Dataset loads by result",
			},
			[]string{"result"},
		),

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "goattrib_active_sessions",
				Help: "Number of sessions currently held in memory",
			},
		),

		FitRunRecordFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "goattrib_fit_run_record_failures_total",
				Help: "Fit runs that could not be written to the history store",
			},
		),
	}

	r.registry.MustRegister(
		r.FitsTotal,
		r.FitDuration,
		r.BootstrapSamples,
		r.BootstrapClamped,
		r.SimulationsTotal,
		r.DatasetsLoaded,
		r.ActiveSessions,
		r.FitRunRecordFails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordFit counts a fit and observes its duration
func (r *Registry) RecordFit(method string, err error, d time.Duration) {
	if r == nil {
		return
	}
	r.FitsTotal.WithLabelValues(method, result(err)).Inc()
	if err == nil {
		r.FitDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

// RecordBootstrap counts resample outcomes and clamping
func (r *Registry) RecordBootstrap(succeeded, failed int, clamped bool) {
	if r == nil {
		return
	}
	r.BootstrapSamples.WithLabelValues("success").Add(float64(succeeded))
	r.BootstrapSamples.WithLabelValues("failure").Add(float64(failed))
	if clamped {
		r.BootstrapClamped.Inc()
	}
}

// RecordSimulation counts a simulation
func (r *Registry) RecordSimulation(err error) {
	if r == nil {
		return
	}
	r.SimulationsTotal.WithLabelValues(result(err)).Inc()
}

// RecordLoad counts a dataset load
func (r *Registry) RecordLoad(err error) {
	if r == nil {
		return
	}
	r.DatasetsLoaded.WithLabelValues(result(err)).Inc()
}

// SetActiveSessions updates the session gauge
func (r *Registry) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.ActiveSessions.Set(float64(n))
}

// RecordFitRunFailure counts a failed history write
func (r *Registry) RecordFitRunFailure() {
	if r == nil {
		return
	}
	r.FitRunRecordFails.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
