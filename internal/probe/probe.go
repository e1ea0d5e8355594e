// Package probe samples competitor prices across marketplaces and
// reduces them to a single reference price for the repricing engine.
package probe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/flipstack/sync-service/internal/platform"
)

var (
	// probeReads tracks competitor price reads per platform and result.
	probeReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probe_competitor_reads_total",
		Help: "Total competitor price reads by platform and result",
	}, []string{"platform", "result"})

	// probeDuration tracks how long a full probe pass takes.
	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probe_sample_duration_seconds",
		Help:    "Time taken to sample competitor prices across platforms",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// Probe fans competitor price reads out to every registered platform
// except the product's own target platform and reduces the successful
// answers to their minimum. A failing or slow platform is excluded
// from the reduction, never fatal to the probe as a whole.
type Probe struct {
	registry    *platform.Registry
	callTimeout time.Duration
	logger      zerolog.Logger
}

// New creates a competitor price probe.
func New(registry *platform.Registry, callTimeout time.Duration) *Probe {
	return &Probe{
		registry:    registry,
		callTimeout: callTimeout,
		logger:      log.With().Str("component", "competitor_probe").Logger(),
	}
}

// Sample reads competitor prices concurrently and returns the lowest
// one. The second return is false when no platform produced a sample;
// callers skip competitor adjustment for that pass.
func (p *Probe) Sample(ctx context.Context, targetPlatform string, ref platform.ProductRef) (int64, bool) {
	start := time.Now()
	defer func() {
		probeDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		mu     sync.Mutex
		lowest = int64(-1)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, slug := range p.registry.Slugs() {
		if slug == targetPlatform {
			continue
		}
		adapter, ok := p.registry.Get(slug)
		if !ok {
			continue
		}

		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.callTimeout)
			defer cancel()

			price, err := adapter.ReadCompetitorPrice(callCtx, ref)
			if err != nil {
				p.recordMiss(adapter.Slug(), ref, err)
				return nil // isolation: one platform never fails the probe
			}

			probeReads.WithLabelValues(adapter.Slug(), "ok").Inc()
			mu.Lock()
			if lowest < 0 || price < lowest {
				lowest = price
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if lowest < 0 {
		return 0, false
	}
	return lowest, true
}

func (p *Probe) recordMiss(slug string, ref platform.ProductRef, err error) {
	if errors.Is(err, platform.ErrUnavailable) {
		probeReads.WithLabelValues(slug, "no_data").Inc()
		return
	}

	probeReads.WithLabelValues(slug, "error").Inc()
	p.logger.Warn().
		Err(err).
		Str("platform", slug).
		Str("sku", ref.SKU).
		Msg("Competitor price read failed, excluding platform from sample")
}
