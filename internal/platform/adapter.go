// Package platform defines the uniform capability surface every
// marketplace integration implements, plus the registry and resilience
// wrappers the engine consumes them through.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// ProductRef identifies a product on a remote marketplace for
// competitor price lookups.
type ProductRef struct {
	SKU      string
	Category string
}

// ListingRef identifies one live listing on a remote marketplace.
type ListingRef struct {
	ListingID  string // Internal listing identifier
	ExternalID string // The marketplace's own listing identifier
}

// Adapter is implemented once per marketplace. All calls must honor the
// caller's context deadline; none of them retry internally.
type Adapter interface {
	// Slug returns the stable marketplace identifier (e.g. "ebay").
	Slug() string

	// Name returns the human-readable marketplace name.
	Name() string

	// ReadCompetitorPrice returns the lowest live competitor price for
	// a comparable product, in minor currency units. Returns
	// ErrUnavailable when the marketplace has no comparable offers.
	ReadCompetitorPrice(ctx context.Context, ref ProductRef) (int64, error)

	// UpdatePrice pushes a new price to one listing.
	UpdatePrice(ctx context.Context, ref ListingRef, price int64) error

	// UpdateQuantity pushes a new quantity to one listing.
	UpdateQuantity(ctx context.Context, ref ListingRef, quantity int) error
}

// ErrUnavailable means a marketplace had no competitor data to offer.
// It is a normal probe outcome, not a failure.
var ErrUnavailable = errors.New("competitor price unavailable")

// TransientError marks a retry-eligible failure: timeouts, rate limits,
// 5xx responses, broken connections.
type TransientError struct {
	Platform string
	Op       string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s %s: transient: %v", e.Platform, e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: unknown
// listing identifiers, values the marketplace rejects outright.
type PermanentError struct {
	Platform string
	Op       string
	Reason   string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Platform, e.Op, e.Reason)
}

// IsTransient reports whether err is retry-eligible. Context deadline
// expiry on a single call counts as transient.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether err is a permanent adapter failure.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
