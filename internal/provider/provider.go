// Package provider implements the exchange rate sources and the cache-aware fallback chain.
package provider

import (
	"context"

	"converterservice/internal/rates"
)

// RatesProvider fetches a complete rate snapshot from one source.
// Implementations report every transport, status or payload failure as a
// rates.ConnectivityError so callers can move on to the next source.
type RatesProvider interface {
	Name() string
	FetchRates(ctx context.Context) (*rates.Snapshot, error)
}
