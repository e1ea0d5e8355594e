// Package sweepers contains background maintenance loops.
package sweepers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/flipstack/sync-service/internal/engine"
)

// DriftSource reports products whose listing mirrors have diverged
// from the authoritative product state.
type DriftSource interface {
	DriftedProductIDs(ctx context.Context) ([]string, error)
}

// Trigger requests an orchestration run for one product.
type Trigger interface {
	TriggerSync(productID string, trigger engine.Trigger)
}

// DriftSweeper periodically scans for drifted listings and requests a
// sync run for their products. It catches listings that went stale
// because every retry for their platform was exhausted in a past run.
type DriftSweeper struct {
	source   DriftSource
	trigger  Trigger
	logger   *zerolog.Logger
	interval time.Duration
	stopChan chan struct{}
}

// NewDriftSweeper creates a drift sweeper.
func NewDriftSweeper(source DriftSource, trigger Trigger, logger *zerolog.Logger, interval time.Duration) *DriftSweeper {
	return &DriftSweeper{
		source:   source,
		trigger:  trigger,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic drift sweep.
func (s *DriftSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Starting drift sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Drift sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Drift sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Drift sweep failed")
			}
		}
	}
}

// Stop signals the sweeper to stop.
func (s *DriftSweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs one drift scan and triggers syncs for drifted products.
func (s *DriftSweeper) Sweep(ctx context.Context) error {
	s.logger.Debug().Msg("Running drift sweep")

	ids, err := s.source.DriftedProductIDs(ctx)
	if err != nil {
		return err
	}

	if len(ids) > 0 {
		s.logger.Info().
			Int("products", len(ids)).
			Msg("Drifted listings found, scheduling syncs")
	}
	for _, id := range ids {
		s.trigger.TriggerSync(id, engine.TriggerPeriodic)
	}
	return nil
}
