// Package scheduler serializes orchestration runs per product. Each
// product moves Idle -> Running -> Idle; triggers arriving while a run
// is in flight coalesce into at most one pending rerun, so an event
// storm costs one extra pass instead of one pass per event.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipstack/sync-service/internal/engine"
)

var (
	// coalescedTriggers tracks triggers folded into a pending rerun.
	coalescedTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_coalesced_triggers_total",
		Help: "Triggers folded into a pending rerun while a run was in flight",
	})

	// duplicateSales tracks sale events dropped by the dedup window.
	duplicateSales = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_duplicate_sales_total",
		Help: "Sale events dropped as duplicates by sale id",
	})
)

// Runner executes one orchestration run for one product.
type Runner interface {
	Execute(ctx context.Context, productID string, trigger engine.Trigger, sales []engine.SaleEvent) (*engine.Outcome, error)
}

// Catalog resolves listings to products and enumerates the products the
// periodic tick should visit.
type Catalog interface {
	ProductIDForListing(ctx context.Context, listingID string) (string, error)
	ActiveProductIDs(ctx context.Context) ([]string, error)
}

// Config holds scheduler configuration.
type Config struct {
	// Cron is the periodic sync cadence, in cron-with-seconds syntax.
	Cron string

	// RunTimeout bounds one full orchestration run.
	RunTimeout time.Duration

	// DedupCapacity is how many recent sale ids the duplicate window
	// remembers. The persistence layer deduplicates first; this is the
	// engine-side guard for at-least-once delivery.
	DedupCapacity int
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Cron:          "0 */15 * * * *",
		RunTimeout:    2 * time.Minute,
		DedupCapacity: 4096,
	}
}

// productState is one product's slot in the single-flight table.
type productState struct {
	running        bool
	pending        bool
	pendingTrigger engine.Trigger
	pendingSales   []engine.SaleEvent
}

// Scheduler is the per-product single-flight state table plus the
// periodic cadence that feeds it.
type Scheduler struct {
	runner  Runner
	catalog Catalog
	cfg     *Config
	cron    *cron.Cron
	logger  zerolog.Logger

	mu        sync.Mutex
	products  map[string]*productState
	seenSales map[string]struct{}
	saleOrder []string

	wg sync.WaitGroup
}

// New creates a scheduler.
func New(runner Runner, catalog Catalog, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		runner:    runner,
		catalog:   catalog,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
		logger:    log.With().Str("component", "scheduler").Logger(),
		products:  make(map[string]*productState),
		seenSales: make(map[string]struct{}),
	}
}

// Start begins the periodic cadence.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Cron, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("cadence", s.cfg.Cron).Msg("Scheduler started")
	return nil
}

// Stop halts the cadence and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// NotifySale feeds one recorded sale into the scheduler. Duplicate
// deliveries of the same sale id inside the dedup window are dropped
// so the decrement is applied once.
func (s *Scheduler) NotifySale(event engine.SaleEvent) {
	if event.SaleID == "" || event.ListingID == "" {
		s.logger.Warn().Msg("Sale event missing sale or listing id, dropping")
		return
	}

	s.mu.Lock()
	if _, dup := s.seenSales[event.SaleID]; dup {
		s.mu.Unlock()
		duplicateSales.Inc()
		s.logger.Debug().
			Str("sale_id", event.SaleID).
			Msg("Duplicate sale event dropped")
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	productID, err := s.catalog.ProductIDForListing(ctx, event.ListingID)
	if err != nil {
		// Not remembered: the event source redelivers, and the next
		// delivery must not be mistaken for a duplicate.
		s.logger.Error().
			Err(err).
			Str("listing_id", event.ListingID).
			Str("sale_id", event.SaleID).
			Msg("Failed to resolve listing to product, dropping sale event")
		return
	}

	s.mu.Lock()
	if _, dup := s.seenSales[event.SaleID]; dup {
		s.mu.Unlock()
		duplicateSales.Inc()
		s.logger.Debug().
			Str("sale_id", event.SaleID).
			Msg("Duplicate sale event dropped")
		return
	}
	s.rememberSaleLocked(event.SaleID)
	s.mu.Unlock()

	s.trigger(productID, engine.TriggerSale, []engine.SaleEvent{event})
}

// TriggerSync requests an orchestration run for one product.
func (s *Scheduler) TriggerSync(productID string, trigger engine.Trigger) {
	s.trigger(productID, trigger, nil)
}

func (s *Scheduler) trigger(productID string, trigger engine.Trigger, sales []engine.SaleEvent) {
	s.mu.Lock()
	state, ok := s.products[productID]
	if !ok {
		state = &productState{}
		s.products[productID] = state
	}

	if state.running {
		// Coalesce: one pending rerun absorbs every trigger that
		// lands while the current run is in flight. Sale decrements
		// accumulate so none are lost.
		state.pending = true
		state.pendingSales = append(state.pendingSales, sales...)
		if trigger == engine.TriggerSale || state.pendingTrigger == engine.TriggerSale {
			state.pendingTrigger = engine.TriggerSale
		} else {
			state.pendingTrigger = trigger
		}
		s.mu.Unlock()
		coalescedTriggers.Inc()
		return
	}

	state.running = true
	s.mu.Unlock()
	s.launch(productID, trigger, sales)
}

func (s *Scheduler) launch(productID string, trigger engine.Trigger, sales []engine.SaleEvent) {
	s.wg.Add(1)
	go s.run(productID, trigger, sales)
}

func (s *Scheduler) run(productID string, trigger engine.Trigger, sales []engine.SaleEvent) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	if _, err := s.runner.Execute(ctx, productID, trigger, sales); err != nil {
		s.logger.Error().
			Err(err).
			Str("product_id", productID).
			Str("trigger", string(trigger)).
			Msg("Orchestration run failed")
	}
	cancel()

	s.mu.Lock()
	state := s.products[productID]
	if state.pending {
		nextTrigger := state.pendingTrigger
		nextSales := state.pendingSales
		state.pending = false
		state.pendingTrigger = ""
		state.pendingSales = nil
		s.mu.Unlock()
		// Still Running: the rerun takes over the critical section.
		s.launch(productID, nextTrigger, nextSales)
		return
	}
	state.running = false
	s.mu.Unlock()
}

// tick visits every active product on the periodic cadence.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := s.catalog.ActiveProductIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list products for periodic sync")
		return
	}

	s.logger.Debug().Int("products", len(ids)).Msg("Periodic sync tick")
	for _, id := range ids {
		s.trigger(id, engine.TriggerPeriodic, nil)
	}
}

// rememberSaleLocked records a sale id in the FIFO dedup window.
// Caller holds s.mu.
func (s *Scheduler) rememberSaleLocked(saleID string) {
	s.seenSales[saleID] = struct{}{}
	s.saleOrder = append(s.saleOrder, saleID)
	if len(s.saleOrder) > s.cfg.DedupCapacity {
		evicted := s.saleOrder[0]
		s.saleOrder = s.saleOrder[1:]
		delete(s.seenSales, evicted)
	}
}
