package regression

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"goattrib/domain/core"
	"goattrib/domain/model"
	"goattrib/internal"
	"goattrib/internal/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxSamples caps the number of bootstrap resamples
	DefaultMaxSamples = 5000
	// DefaultSeed makes repeated runs bit-for-bit reproducible
	DefaultSeed int64 = 42

	lowerPercentile = 2.5
	upperPercentile = 97.5
)

// BootstrapOptions configures a bootstrap run
type BootstrapOptions struct {
	Samples    int
	Seed       int64
	Workers    int // <= 0 uses GOMAXPROCS
	MaxSamples int // <= 0 uses DefaultMaxSamples
	Metrics    *metrics.Registry
	Logger     *internal.Logger
}

// Bootstrap estimates 95% percentile intervals for the OLS coefficients of d
// by resampling rows with replacement.
//
// Resample i draws its rows from a PCG stream seeded (Seed, i), so the
// result does not depend on the worker count or scheduling order.
// Resamples that fail to fit are discarded and counted; if none succeed
// the interval map is empty and a warning is returned.
func Bootstrap(ctx context.Context, d *Design, opts BootstrapOptions) (model.BootstrapCI, model.BootstrapStats, []model.Warning, error) {
	logger := opts.Logger
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if opts.Samples < 0 {
		return nil, model.BootstrapStats{}, nil,
			core.NewInvalidParameterError("bootstrap_samples", fmt.Sprintf("must be >= 0, got %d", opts.Samples))
	}

	maxSamples := opts.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	result := model.BootstrapStats{Requested: opts.Samples, Seed: opts.Seed}
	var warnings []model.Warning

	samples := opts.Samples
	if samples > maxSamples {
		samples = maxSamples
		result.Clamped = true
		warnings = append(warnings, model.NewWarning(model.WarningBootstrapClamped, "",
			"bootstrap_samples reduced from %d to %d", opts.Samples, maxSamples))
		logger.Warn("[Bootstrap] bootstrap_samples reduced from %d to %d", opts.Samples, maxSamples)
	}
	result.Used = samples
	if workers > samples {
		workers = samples
	}
	result.Workers = workers

	if samples == 0 {
		opts.Metrics.RecordBootstrap(0, 0, result.Clamped)
		return model.BootstrapCI{}, result, warnings, nil
	}

	n, _ := d.Dims()
	draws := make([][]float64, samples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < samples; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(i)))
			rows := make([]int, n)
			for r := range rows {
				rows[r] = rng.IntN(n)
			}
			resampled := d.Resample(rows)
			beta, err := leastSquares(resampled.X, resampled.Y)
			if err != nil {
				return nil
			}
			draws[i] = append([]float64(nil), beta.RawVector().Data...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, result, warnings, err
	}
	if err := ctx.Err(); err != nil {
		return nil, result, warnings, err
	}

	var succeeded [][]float64
	for _, beta := range draws {
		if beta != nil {
			succeeded = append(succeeded, beta)
		}
	}
	result.Succeeded = len(succeeded)
	result.Failed = samples - len(succeeded)
	opts.Metrics.RecordBootstrap(result.Succeeded, result.Failed, result.Clamped)

	if result.Failed > 0 {
		warnings = append(warnings, model.NewWarning(model.WarningResampleFailure, "",
			"%d of %d resamples could not be fitted and were discarded", result.Failed, samples))
		logger.Debug("[Bootstrap] discarded %d failed resamples", result.Failed)
	}
	if len(succeeded) == 0 {
		warnings = append(warnings, model.NewWarning(model.WarningBootstrapEmpty, "",
			"no resample could be fitted; confidence intervals unavailable"))
		logger.Warn("[Bootstrap] no valid resamples out of %d, returning empty intervals", samples)
		return model.BootstrapCI{}, result, warnings, nil
	}

	ci := make(model.BootstrapCI, len(d.Names))
	column := make([]float64, len(succeeded))
	for j, name := range d.Names {
		for s, beta := range succeeded {
			column[s] = beta[j]
		}
		ci[name] = model.Interval{
			Lower: percentile(column, lowerPercentile),
			Upper: percentile(column, upperPercentile),
		}
	}

	logger.Debug("[Bootstrap] %d/%d resamples succeeded with %d workers", result.Succeeded, samples, workers)
	return ci, result, warnings, nil
}

// percentile interpolates linearly between the two order statistics that
// bracket rank (n-1)·p/100, so the bounds agree with numpy's default
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	last := len(sorted) - 1
	pos := p / 100 * float64(last)
	lo := int(math.Floor(pos))
	if lo >= last {
		return sorted[last]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}
