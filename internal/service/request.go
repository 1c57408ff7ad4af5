package service

import (
	"fmt"
	"math"
)

// ConversionRequest is an amount in a source currency to convert into targets.
// An empty target list means every currency of the rate table.
type ConversionRequest struct {
	amount  float64
	source  string
	targets []string
}

// NewConversionRequest validates the amount and returns an immutable request.
func NewConversionRequest(amount float64, source string, targets ...string) (ConversionRequest, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ConversionRequest{}, fmt.Errorf("%w: amount must be a positive number", ErrInvalidAmount)
	}
	if source == "" {
		return ConversionRequest{}, fmt.Errorf("%w: source currency is required", ErrInvalidCurrency)
	}
	return ConversionRequest{
		amount:  amount,
		source:  source,
		targets: dedupe(targets),
	}, nil
}

// Amount returns the amount to convert.
func (r ConversionRequest) Amount() float64 { return r.amount }

// Source returns the ISO code of the source currency.
func (r ConversionRequest) Source() string { return r.source }

// Targets returns a copy of the requested target codes.
func (r ConversionRequest) Targets() []string {
	return append([]string(nil), r.targets...)
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
