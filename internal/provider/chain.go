package provider

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"converterservice/internal/metrics"
	"converterservice/internal/rates"
)

var _ RatesProvider = (*FallbackChain)(nil)

// FallbackChain calls providers in order until one returns a snapshot.
// A connectivity failure moves on to the next provider; any other failure,
// or a done context, stops the chain.
type FallbackChain struct {
	providers []RatesProvider
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
}

// NewFallbackChain creates a new FallbackChain over providers, tried in the given order.
func NewFallbackChain(logger *zap.SugaredLogger, m *metrics.Metrics, providers ...RatesProvider) *FallbackChain {
	return &FallbackChain{
		providers: providers,
		log:       logger,
		metrics:   m,
	}
}

// Name returns the name of the chain.
func (c *FallbackChain) Name() string { return "chain" }

// FetchRates returns the first snapshot a provider delivers. When every provider
// fails the joined error still matches rates.ErrConnectivity.
func (c *FallbackChain) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	if len(c.providers) == 0 {
		return nil, rates.NewConnectivityError(c.Name(), errors.New("no providers configured"))
	}

	var errs []error
	for i, prov := range c.providers {
		snap, err := prov.FetchRates(ctx)
		if err == nil {
			c.metrics.ProviderFetch(prov.Name(), metrics.OutcomeSuccess)
			if i > 0 {
				c.log.Warnw("Serving rates from fallback provider", "provider", prov.Name())
			} else {
				c.log.Debugw("Serving rates", "provider", prov.Name(), "timestamp", snap.Timestamp)
			}
			return snap, nil
		}

		c.metrics.ProviderFetch(prov.Name(), metrics.OutcomeFailure)
		c.log.Warnw("Rate provider failed", "provider", prov.Name(), "error", err)
		errs = append(errs, err)

		if ctx.Err() != nil || !rates.IsConnectivity(err) {
			break
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
