package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipstack/sync-service/internal/engine"
)

type runRecord struct {
	productID string
	trigger   engine.Trigger
	sales     []engine.SaleEvent
}

// fakeRunner records every run and can block mid-run to let tests pile
// triggers up behind an in-flight execution.
type fakeRunner struct {
	mu        sync.Mutex
	block     chan struct{}
	runs      []runRecord
	active    int
	maxActive int
}

func (r *fakeRunner) Execute(ctx context.Context, productID string, trigger engine.Trigger, sales []engine.SaleEvent) (*engine.Outcome, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	block := r.block
	r.mu.Unlock()

	if block != nil {
		<-block
	}

	r.mu.Lock()
	r.runs = append(r.runs, runRecord{productID: productID, trigger: trigger, sales: sales})
	r.active--
	r.mu.Unlock()
	return &engine.Outcome{ProductID: productID, Trigger: trigger}, nil
}

func (r *fakeRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func (r *fakeRunner) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *fakeRunner) recorded() []runRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runRecord, len(r.runs))
	copy(out, r.runs)
	return out
}

type fakeCatalog struct {
	listings map[string]string // listing id -> product id
	active   []string

	mu       sync.Mutex
	failures int // resolution errors to return before succeeding
}

func (c *fakeCatalog) ProductIDForListing(ctx context.Context, listingID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return "", errors.New("connection refused")
	}
	return c.listings[listingID], nil
}

func (c *fakeCatalog) ActiveProductIDs(ctx context.Context) ([]string, error) {
	return c.active, nil
}

func testSchedulerConfig() *Config {
	return &Config{
		Cron:          "0 */15 * * * *",
		RunTimeout:    time.Second,
		DedupCapacity: 8,
	}
}

func TestTriggerStormCoalescesIntoOneRerun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1"}}
	s := New(runner, catalog, testSchedulerConfig())

	s.TriggerSync("p1", engine.TriggerManual)
	require.Eventually(t, func() bool { return runner.activeCount() == 1 }, time.Second, time.Millisecond)

	// Ten more triggers land while the run is in flight.
	for i := 0; i < 10; i++ {
		s.TriggerSync("p1", engine.TriggerPeriodic)
	}

	close(runner.block)
	s.Stop()

	assert.Equal(t, 2, runner.runCount(), "a storm costs exactly one rerun")
}

func TestCoalescedSalesAccumulate(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1", "l2": "p1"}}
	s := New(runner, catalog, testSchedulerConfig())

	s.TriggerSync("p1", engine.TriggerPeriodic)
	require.Eventually(t, func() bool { return runner.activeCount() == 1 }, time.Second, time.Millisecond)

	s.NotifySale(engine.SaleEvent{SaleID: "s1", ListingID: "l1", QuantitySold: 1})
	s.NotifySale(engine.SaleEvent{SaleID: "s2", ListingID: "l2", QuantitySold: 2})

	close(runner.block)
	s.Stop()

	runs := runner.recorded()
	require.Len(t, runs, 2)
	assert.Equal(t, engine.TriggerPeriodic, runs[0].trigger)

	// The rerun carries both sale decrements and upgrades to a sale
	// trigger; no sale is lost to coalescing.
	assert.Equal(t, engine.TriggerSale, runs[1].trigger)
	require.Len(t, runs[1].sales, 2)
	assert.Equal(t, "s1", runs[1].sales[0].SaleID)
	assert.Equal(t, "s2", runs[1].sales[1].SaleID)
}

func TestDuplicateSaleDropped(t *testing.T) {
	runner := &fakeRunner{}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1"}}
	s := New(runner, catalog, testSchedulerConfig())

	event := engine.SaleEvent{SaleID: "s1", ListingID: "l1", QuantitySold: 1}
	s.NotifySale(event)
	s.NotifySale(event)
	s.NotifySale(event)
	s.Stop()

	assert.Equal(t, 1, runner.runCount(), "redelivered sale must decrement once")
}

func TestSaleRedeliveredAfterResolutionFailure(t *testing.T) {
	runner := &fakeRunner{}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1"}, failures: 1}
	s := New(runner, catalog, testSchedulerConfig())

	event := engine.SaleEvent{SaleID: "s1", ListingID: "l1", QuantitySold: 1}

	// First delivery hits a catalog outage and is dropped; the sale id
	// must not land in the dedup window, or the redelivery below would
	// be discarded and the decrement lost for good.
	s.NotifySale(event)
	require.Zero(t, runner.runCount())

	s.NotifySale(event)
	s.Stop()

	assert.Equal(t, 1, runner.runCount(), "redelivery after a failed resolution must run")
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	runner := &fakeRunner{}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1"}}
	cfg := testSchedulerConfig()
	cfg.DedupCapacity = 2
	s := New(runner, catalog, cfg)

	s.NotifySale(engine.SaleEvent{SaleID: "s1", ListingID: "l1", QuantitySold: 1})
	s.NotifySale(engine.SaleEvent{SaleID: "s2", ListingID: "l1", QuantitySold: 1})
	s.NotifySale(engine.SaleEvent{SaleID: "s3", ListingID: "l1", QuantitySold: 1})

	// s1 fell out of the window, so a late redelivery passes through.
	s.NotifySale(engine.SaleEvent{SaleID: "s1", ListingID: "l1", QuantitySold: 1})
	s.Stop()

	// Runs may coalesce, but all four accepted sales must be delivered.
	delivered := 0
	for _, run := range runner.recorded() {
		delivered += len(run.sales)
	}
	assert.Equal(t, 4, delivered)
}

func TestSaleMissingIDsDropped(t *testing.T) {
	runner := &fakeRunner{}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1"}}
	s := New(runner, catalog, testSchedulerConfig())

	s.NotifySale(engine.SaleEvent{ListingID: "l1", QuantitySold: 1})
	s.NotifySale(engine.SaleEvent{SaleID: "s1", QuantitySold: 1})
	s.Stop()

	assert.Zero(t, runner.runCount())
}

func TestRunsForOneProductNeverOverlap(t *testing.T) {
	runner := &fakeRunner{}
	catalog := &fakeCatalog{listings: map[string]string{"l1": "p1"}}
	s := New(runner, catalog, testSchedulerConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.TriggerSync("p1", engine.TriggerPeriodic)
		}()
	}
	wg.Wait()
	s.Stop()

	assert.Equal(t, 1, runner.maxActive, "same product must never run concurrently")
	assert.GreaterOrEqual(t, runner.runCount(), 1)
}

func TestDifferentProductsRunIndependently(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	catalog := &fakeCatalog{}
	s := New(runner, catalog, testSchedulerConfig())

	s.TriggerSync("p1", engine.TriggerPeriodic)
	s.TriggerSync("p2", engine.TriggerPeriodic)
	require.Eventually(t, func() bool { return runner.activeCount() == 2 }, time.Second, time.Millisecond)

	close(runner.block)
	s.Stop()

	assert.Equal(t, 2, runner.runCount())
}
