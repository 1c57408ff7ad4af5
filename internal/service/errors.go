package service

import (
	"errors"
)

// ErrInvalidCurrency indicates a currency missing from the rate table.
var ErrInvalidCurrency = errors.New("invalid currency")

// ErrInvalidAmount indicates a non-positive or non-finite amount.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrRatesUnavailable indicates that no rate provider could deliver a snapshot.
var ErrRatesUnavailable = errors.New("exchange rates are currently unavailable")

// ErrInternal indicates an internal server error.
var ErrInternal = errors.New("internal error")

// IsInvalidInput reports whether err is a non-retryable input error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidCurrency) || errors.Is(err, ErrInvalidAmount)
}

// publicMessage is the error text exposed to callers. Connectivity details stay in the logs.
func publicMessage(err error) string {
	switch {
	case IsInvalidInput(err):
		return err.Error()
	case errors.Is(err, ErrRatesUnavailable):
		return ErrRatesUnavailable.Error()
	default:
		return ErrInternal.Error()
	}
}
