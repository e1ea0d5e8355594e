package pricing

import (
	"time"
)

// Rule is one immutable version of a product's pricing rule.
// Updates never edit a rule in place; the CRUD layer inserts a new
// version and "current rule" becomes a lookup of the latest one.
// All money values are int64 minor currency units (e.g. cents).
type Rule struct {
	ID              string    // Rule version identifier
	ProductID       string    // Product this rule prices
	Version         int       // Monotonic version number per product
	MarkupPercent   float64   // Percentage markup on cost basis (>= 0)
	MarkupFixed     int64     // Fixed amount added after markup; negative = discount
	MinPrice        *int64    // Lower clamp bound, nil = unbounded
	MaxPrice        *int64    // Upper clamp bound, nil = unbounded
	AutoReprice     bool      // Whether computed prices are pushed to listings
	CompetitorCheck bool      // Whether to consult competitor prices before clamping
	CreatedAt       time.Time // Version creation time
}

// Validate checks the rule's bounds without evaluating it.
func (r Rule) Validate() error {
	if r.MarkupPercent < 0 {
		return InvalidRuleError{Field: "markupPercent", Reason: "must not be negative"}
	}
	if r.MinPrice != nil && r.MaxPrice != nil && *r.MinPrice > *r.MaxPrice {
		return InvalidRuleError{Field: "minPrice", Reason: "exceeds maxPrice"}
	}
	return nil
}
