package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"converterservice/internal/rates"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*rates.Snapshot)
	return snap, args.Error(1)
}

func (m *mockRefresher) Refresh(ctx context.Context) (*rates.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*rates.Snapshot)
	return snap, args.Error(1)
}

var snap = &rates.Snapshot{Base: "EUR", Rates: map[string]float64{"USD": 1.1}, Timestamp: 1}

func runTask(t *testing.T, r Refresher, force bool) error {
	t.Helper()
	task, err := NewRefreshTask(force)
	require.NoError(t, err)
	return NewRefreshRatesHandler(r, zap.NewNop().Sugar())(context.Background(), task)
}

func TestRefreshRatesHandler(t *testing.T) {
	t.Run("scheduled refresh honours freshness", func(t *testing.T) {
		r := &mockRefresher{}
		r.On("FetchRates", mock.Anything).Return(snap, nil).Once()

		require.NoError(t, runTask(t, r, false))
		r.AssertExpectations(t)
		r.AssertNotCalled(t, "Refresh", mock.Anything)
	})

	t.Run("forced refresh", func(t *testing.T) {
		r := &mockRefresher{}
		r.On("Refresh", mock.Anything).Return(snap, nil).Once()

		require.NoError(t, runTask(t, r, true))
		r.AssertExpectations(t)
		r.AssertNotCalled(t, "FetchRates", mock.Anything)
	})

	t.Run("connectivity error is retried", func(t *testing.T) {
		r := &mockRefresher{}
		r.On("Refresh", mock.Anything).Return(nil, rates.NewConnectivityError("fixer", errors.New("timeout")))

		err := runTask(t, r, true)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("other errors skip retry", func(t *testing.T) {
		r := &mockRefresher{}
		r.On("Refresh", mock.Anything).Return(nil, errors.New("bad snapshot"))

		err := runTask(t, r, true)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("invalid payload is dropped", func(t *testing.T) {
		r := &mockRefresher{}
		task := asynq.NewTask(TaskTypeRefreshRates, []byte("{"))

		err := NewRefreshRatesHandler(r, zap.NewNop().Sugar())(context.Background(), task)
		assert.NoError(t, err)
		r.AssertNotCalled(t, "Refresh", mock.Anything)
		r.AssertNotCalled(t, "FetchRates", mock.Anything)
	})
}

func TestAsynqEnqueuer_EnqueueRefresh(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := NewAsynqEnqueuer(client, 3, 30*time.Second)
	ctx := context.Background()

	id, err := e.EnqueueRefresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = e.EnqueueRefresh(ctx)
	assert.ErrorIs(t, err, ErrRefreshPending)
}
