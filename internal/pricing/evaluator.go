// Package pricing computes target listing prices from a product's cost
// basis and its current pricing rule. Evaluation is a pure function:
// no I/O, no hidden state, identical inputs yield identical output.
package pricing

import (
	"math"
)

// UndercutStep is the smallest meaningful price unit. When a competitor
// sample is in play the computed price lands exactly this far below it.
const UndercutStep int64 = 1

// Evaluate computes the target price for a product.
//
// raw = costBasis * (1 + markupPercent/100) + markupFixed. If a
// competitor sample is present and the rule opts into competitor
// checks, raw is lowered to competitor - UndercutStep when that is
// cheaper; the markup-derived price is never raised toward a higher
// competitor. The result is clamped to [MinPrice, MaxPrice], with nil
// bounds treated as open.
func Evaluate(costBasis int64, rule Rule, competitor *int64) (int64, error) {
	if costBasis < 0 {
		return 0, InvalidRuleError{Field: "costBasis", Reason: "must not be negative"}
	}
	if err := rule.Validate(); err != nil {
		return 0, err
	}

	raw := int64(math.Round(float64(costBasis)*(1+rule.MarkupPercent/100))) + rule.MarkupFixed

	if competitor != nil && rule.CompetitorCheck {
		undercut := *competitor - UndercutStep
		if undercut < raw {
			raw = undercut
		}
	}

	return clamp(raw, rule.MinPrice, rule.MaxPrice), nil
}

func clamp(v int64, min, max *int64) int64 {
	if min != nil && v < *min {
		return *min
	}
	if max != nil && v > *max {
		return *max
	}
	return v
}
