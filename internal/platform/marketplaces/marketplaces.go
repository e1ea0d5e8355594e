// Package marketplaces contains the concrete PlatformAdapter
// implementations. Each adapter is a thin translation layer between the
// uniform capability surface and one marketplace's REST API; retry and
// circuit breaking happen outside, in the engine and the Guard wrapper.
package marketplaces

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/flipstack/sync-service/internal/platform"
	"github.com/flipstack/sync-service/internal/platform/rest"
)

// RegisterAll builds the default adapter set and registers each one
// wrapped in a circuit breaker. Missing per-platform configs fall back
// to the platform's public API defaults.
func RegisterAll(reg *platform.Registry, cfgs map[string]rest.Config, breaker *platform.BreakerConfig, logger *zerolog.Logger) {
	reg.Register(platform.Guard(NewEbayAdapter(configFor(cfgs, "ebay", "https://api.ebay.com")), breaker, logger))
	reg.Register(platform.Guard(NewEtsyAdapter(configFor(cfgs, "etsy", "https://openapi.etsy.com")), breaker, logger))
	reg.Register(platform.Guard(NewDepopAdapter(configFor(cfgs, "depop", "https://api.depop.com")), breaker, logger))
}

func configFor(cfgs map[string]rest.Config, slug, defaultBaseURL string) rest.Config {
	if cfg, ok := cfgs[slug]; ok {
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultBaseURL
		}
		return cfg
	}
	return rest.DefaultConfig(defaultBaseURL)
}

// classify maps an HTTP exchange to the adapter failure taxonomy.
// Network errors and retryable statuses are transient; everything the
// marketplace answered definitively with is permanent.
func classify(slug, op string, res rest.Result, err error) error {
	if err != nil {
		return &platform.TransientError{Platform: slug, Op: op, Err: err}
	}

	switch {
	case rest.IsSuccessStatus(res.Status):
		return nil
	case res.Status == 404:
		return &platform.PermanentError{Platform: slug, Op: op, Reason: "listing not found"}
	case res.Status == 400 || res.Status == 409 || res.Status == 422:
		return &platform.PermanentError{Platform: slug, Op: op, Reason: fmt.Sprintf("rejected with HTTP %d", res.Status)}
	case rest.IsRetryableStatus(res.Status):
		return &platform.TransientError{Platform: slug, Op: op, Err: fmt.Errorf("HTTP %d", res.Status)}
	default:
		return &platform.PermanentError{Platform: slug, Op: op, Reason: fmt.Sprintf("unexpected HTTP %d", res.Status)}
	}
}

// moneyAmount is the decimal price representation marketplace APIs use.
type moneyAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// parseAmount converts a decimal amount string to minor units.
func parseAmount(value string) (int64, error) {
	major, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return toMinorUnits(major), nil
}

// toMinorUnits converts a decimal major-unit amount to minor units.
func toMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}

// fromMinorUnits renders minor units as a decimal string for APIs that
// take major-unit amounts.
func fromMinorUnits(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
