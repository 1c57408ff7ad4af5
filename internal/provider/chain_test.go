package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"converterservice/internal/rates"
)

func TestFallbackChain_FetchRates(t *testing.T) {
	logger := zap.NewNop().Sugar()
	eurUSD := &rates.Snapshot{Base: "EUR", Rates: map[string]float64{"USD": 1.1}, Timestamp: 1}

	t.Run("first succeeds", func(t *testing.T) {
		m1 := newMockProvider("m1")
		m2 := newMockProvider("m2")
		m1.On("FetchRates", mock.Anything).Return(eurUSD, nil)

		snap, err := NewFallbackChain(logger, nil, m1, m2).FetchRates(context.Background())

		require.NoError(t, err)
		assert.Equal(t, eurUSD, snap)
		m1.AssertExpectations(t)
		m2.AssertNotCalled(t, "FetchRates", mock.Anything)
	})

	t.Run("first fails, second succeeds", func(t *testing.T) {
		m1 := newMockProvider("m1")
		m2 := newMockProvider("m2")
		m1.On("FetchRates", mock.Anything).Return(nil, rates.NewConnectivityError("m1", errors.New("m1 failed")))
		m2.On("FetchRates", mock.Anything).Return(eurUSD, nil).Once()

		snap, err := NewFallbackChain(logger, nil, m1, m2).FetchRates(context.Background())

		require.NoError(t, err)
		assert.Equal(t, eurUSD, snap)
		m1.AssertExpectations(t)
		m2.AssertExpectations(t)
	})

	t.Run("all fail", func(t *testing.T) {
		m1 := newMockProvider("m1")
		m2 := newMockProvider("m2")
		m1.On("FetchRates", mock.Anything).Return(nil, rates.NewConnectivityError("m1", errors.New("m1 failed")))
		m2.On("FetchRates", mock.Anything).Return(nil, rates.NewConnectivityError("m2", errors.New("m2 failed")))

		_, err := NewFallbackChain(logger, nil, m1, m2).FetchRates(context.Background())

		require.Error(t, err)
		assert.True(t, rates.IsConnectivity(err))
		assert.Contains(t, err.Error(), "all providers failed")
		assert.Contains(t, err.Error(), "m1 failed")
		assert.Contains(t, err.Error(), "m2 failed")
		m1.AssertExpectations(t)
		m2.AssertExpectations(t)
	})

	t.Run("non-connectivity error stops the chain", func(t *testing.T) {
		m1 := newMockProvider("m1")
		m2 := newMockProvider("m2")
		boom := errors.New("programming error")
		m1.On("FetchRates", mock.Anything).Return(nil, boom)

		_, err := NewFallbackChain(logger, nil, m1, m2).FetchRates(context.Background())

		assert.ErrorIs(t, err, boom)
		assert.False(t, rates.IsConnectivity(err))
		m2.AssertNotCalled(t, "FetchRates", mock.Anything)
	})

	t.Run("cancelled context stops the chain", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m1 := newMockProvider("m1")
		m2 := newMockProvider("m2")
		m1.On("FetchRates", mock.Anything).Return(nil, rates.NewConnectivityError("m1", context.Canceled))

		_, err := NewFallbackChain(logger, nil, m1, m2).FetchRates(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		m2.AssertNotCalled(t, "FetchRates", mock.Anything)
	})

	t.Run("empty chain", func(t *testing.T) {
		_, err := NewFallbackChain(logger, nil).FetchRates(context.Background())
		assert.True(t, rates.IsConnectivity(err))
	})
}
