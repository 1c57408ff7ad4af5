// Package service implements currency conversion on top of the rate providers.
package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"converterservice/internal/metrics"
	"converterservice/internal/provider"
	"converterservice/internal/rates"
)

// ConverterInterface defines the conversion operation used by the HTTP layer.
type ConverterInterface interface {
	Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error)
}

var _ ConverterInterface = (*Converter)(nil)

// Converter acquires a rate snapshot and converts request amounts with it.
type Converter struct {
	rates   provider.RatesProvider
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewConverter creates a Converter. rates is normally a provider.FallbackChain
// whose first element is the cache-backed primary provider.
func NewConverter(rates provider.RatesProvider, logger *zap.SugaredLogger, m *metrics.Metrics) *Converter {
	return &Converter{
		rates:   rates,
		log:     logger,
		metrics: m,
	}
}

// Convert converts req.Amount() from the source currency into every target.
// The first unknown currency fails the whole request with ErrInvalidCurrency;
// provider exhaustion fails it with ErrRatesUnavailable.
func (c *Converter) Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error) {
	snap, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	output, err := convertAll(snap, req)
	if err != nil {
		c.metrics.Conversion(metrics.OutcomeInvalidInput)
		return nil, err
	}

	c.metrics.Conversion(metrics.OutcomeSuccess)
	return &ConversionResult{
		Amount:         req.Amount(),
		Source:         req.Source(),
		Base:           snap.Base,
		RatesTimestamp: snap.Timestamp,
		Output:         output,
	}, nil
}

func (c *Converter) acquire(ctx context.Context) (*rates.Snapshot, error) {
	snap, err := c.rates.FetchRates(ctx)
	if err == nil {
		return snap, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.metrics.Conversion(metrics.OutcomeFailure)
		return nil, ctxErr
	}
	if rates.IsConnectivity(err) {
		c.metrics.Conversion(metrics.OutcomeUnavailable)
		c.log.Errorw("No rate provider available", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
	}
	c.metrics.Conversion(metrics.OutcomeFailure)
	c.log.Errorw("Rate acquisition failed", "error", err)
	return nil, fmt.Errorf("%w: %w", ErrInternal, err)
}

// convertAll converts into every requested target, or every currency of the
// snapshot when none were requested. Amounts are rounded half away from zero to 2 places.
func convertAll(snap *rates.Snapshot, req ConversionRequest) (map[string]float64, error) {
	from := req.Source()
	fromRate, ok := snap.Rate(from)
	if !ok || fromRate == 0 {
		return nil, fmt.Errorf("%w: %s is not in the rate table", ErrInvalidCurrency, from)
	}

	targets := req.Targets()
	if len(targets) == 0 {
		targets = snap.Currencies()
	}

	amount := decimal.NewFromFloat(req.Amount())
	output := make(map[string]float64, len(targets))
	for _, to := range targets {
		toRate, ok := snap.Rate(to)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not in the rate table", ErrInvalidCurrency, to)
		}
		output[to] = convertAmount(amount, snap.Base, from, to, fromRate, toRate).
			Round(2).InexactFloat64()
	}
	return output, nil
}

// convertAmount goes through the base currency when neither side is the base.
func convertAmount(amount decimal.Decimal, base, from, to string, fromRate, toRate float64) decimal.Decimal {
	rFrom := decimal.NewFromFloat(fromRate)
	rTo := decimal.NewFromFloat(toRate)
	switch {
	case from == base:
		return amount.Mul(rTo)
	case to == base:
		return amount.Div(rFrom)
	default:
		return amount.Div(rFrom).Mul(rTo)
	}
}
