package engine

import (
	"time"
)

// Trigger identifies what started an orchestration run.
type Trigger string

const (
	// TriggerSale marks runs started by recorded sale events.
	TriggerSale Trigger = "sale"

	// TriggerPeriodic marks runs started by the scheduled cadence.
	TriggerPeriodic Trigger = "periodic"

	// TriggerManual marks runs started by an operator.
	TriggerManual Trigger = "manual"
)

// ProductStatus is the lifecycle state of a tracked product.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductPaused   ProductStatus = "paused"
	ProductArchived ProductStatus = "archived"
)

// ListingStatus is the lifecycle state of one marketplace listing.
type ListingStatus string

const (
	ListingActive ListingStatus = "active"
	ListingEnded  ListingStatus = "ended"
	ListingError  ListingStatus = "error"
)

// Product is the authoritative record for one sourced item. Quantity
// and the rule-computed price live here; listings only mirror them.
// Money values are int64 minor currency units.
type Product struct {
	ID             string
	UserID         string
	SKU            string
	Category       string
	SourcePlatform string // Marketplace the product was sourced from
	TargetPlatform string // Primary marketplace it sells on
	SourcePrice    int64  // Cost basis
	CurrentPrice   int64  // Last computed price, stored for display
	Quantity       int    // Authoritative stock count
	Status         ProductStatus
}

// Listing is one live listing on a marketplace. Price and Quantity are
// replicas of the product's authoritative state. At most one listing
// exists per (product, platform) pair.
type Listing struct {
	ID         string
	ProductID  string
	Platform   string // Marketplace slug
	ExternalID string // The marketplace's own listing identifier
	Price      int64  // Mirrored price
	Quantity   int    // Mirrored quantity
	Status     ListingStatus
}

// SaleEvent is a "sale recorded" notification for one listing.
// Delivery is at-least-once; SaleID is the dedup key.
type SaleEvent struct {
	SaleID       string    `json:"saleId"`
	ListingID    string    `json:"listingId"`
	QuantitySold int       `json:"quantitySold"`
	OccurredAt   time.Time `json:"saleTimestamp"`
}

// PushOp names the kind of value pushed to a listing.
type PushOp string

const (
	OpPrice    PushOp = "price"
	OpQuantity PushOp = "quantity"
)

// FailureKind classifies a recorded listing-level failure.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// ListingResult records the outcome of one push to one listing.
type ListingResult struct {
	ListingID   string      `json:"listingId"`
	Platform    string      `json:"platform"`
	Op          PushOp      `json:"op"`
	Previous    int64       `json:"previous"`
	Applied     int64       `json:"applied"`
	Attempts    int         `json:"attempts"`
	OK          bool        `json:"ok"`
	FailureKind FailureKind `json:"failureKind,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Outcome is the record of one orchestration run, handed to the
// persistence collaborator for audit and analytics. The engine itself
// keeps no durable state beyond the rows it reads and writes.
type Outcome struct {
	RunID            string          `json:"runId"`
	ProductID        string          `json:"productId"`
	Trigger          Trigger         `json:"trigger"`
	PreviousQuantity int             `json:"previousQuantity"`
	NewQuantity      int             `json:"newQuantity"`
	PreviousPrice    int64           `json:"previousPrice"`
	NewPrice         int64           `json:"newPrice"`
	Repriced         bool            `json:"repriced"`
	Results          []ListingResult `json:"results"`
	Warnings         []string        `json:"warnings,omitempty"`
	StartedAt        time.Time       `json:"startedAt"`
	CompletedAt      time.Time       `json:"completedAt"`
}

// FailedResults returns the listing results that recorded a failure.
func (o *Outcome) FailedResults() []ListingResult {
	var failed []ListingResult
	for _, r := range o.Results {
		if !r.OK {
			failed = append(failed, r)
		}
	}
	return failed
}

// Config contains the engine's tuning constants. All of them come from
// configuration with documented defaults, not hidden magic numbers.
type Config struct {
	// PriceEpsilon suppresses price pushes when the mirrored price is
	// already within this many minor units of the target.
	PriceEpsilon int64

	// MaxRetries bounds retries of a transient adapter failure before
	// it is recorded as a listing-level failure.
	MaxRetries int

	// InitialBackoff is the base delay of the exponential backoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff delay.
	MaxBackoff time.Duration

	// AdapterTimeout bounds every single adapter call.
	AdapterTimeout time.Duration

	// ProbeTimeout bounds each per-platform competitor price read.
	ProbeTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		PriceEpsilon:   1,
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AdapterTimeout: 10 * time.Second,
		ProbeTimeout:   3 * time.Second,
	}
}
