package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"converterservice/internal/cache"
	"converterservice/internal/rates"
)

var testNow = time.Unix(1_700_000_000, 0)

func newCachedFixture(t *testing.T) (*miniredis.Miniredis, *cache.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, cache.NewRedisStore(rdb, "")
}

func newCached(prov RatesProvider, store cache.Store) *CachedRatesProvider {
	p := NewCachedRatesProvider(prov, store, time.Hour, zap.NewNop().Sugar(), nil)
	p.now = func() time.Time { return testNow }
	return p
}

func snapshotAt(ts int64, usd float64) *rates.Snapshot {
	return &rates.Snapshot{Base: "EUR", Rates: map[string]float64{"USD": usd, "GBP": 0.9}, Timestamp: ts}
}

func TestCachedRatesProvider_MissThenHit(t *testing.T) {
	_, store := newCachedFixture(t)
	ctx := context.Background()

	prim := newMockProvider(FixerName)
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.1), nil).Once()
	p := newCached(prim, store)

	// First call - cache miss
	snap, err := p.FetchRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.1, snap.Rates["USD"])

	stored, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshotAt(testNow.Unix(), 1.1), stored)

	// Second call - cache hit (MockProvider must not be called again because of .Once())
	snap, err = p.FetchRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.1, snap.Rates["USD"])
	prim.AssertExpectations(t)
}

func TestCachedRatesProvider_FreshnessBoundary(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		fetches bool
	}{
		{"fresh", time.Hour - time.Second, false},
		{"exactly one hour old is stale", time.Hour, true},
		{"two hours old", 2 * time.Hour, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, store := newCachedFixture(t)
			ctx := context.Background()
			require.NoError(t, store.PutSnapshot(ctx, snapshotAt(testNow.Add(-tc.age).Unix(), 1.1)))

			prim := newMockProvider(FixerName)
			if tc.fetches {
				prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.3), nil).Once()
			}
			p := newCached(prim, store)

			snap, err := p.FetchRates(ctx)
			require.NoError(t, err)
			prim.AssertExpectations(t)

			if tc.fetches {
				assert.Equal(t, 1.3, snap.Rates["USD"])
				stored, err := store.Snapshot(ctx)
				require.NoError(t, err)
				assert.Equal(t, testNow.Unix(), stored.Timestamp)
			} else {
				assert.Equal(t, 1.1, snap.Rates["USD"])
				prim.AssertNotCalled(t, "FetchRates", mock.Anything)
			}
		})
	}
}

func TestCachedRatesProvider_ProviderErrorIsNotCached(t *testing.T) {
	mr, store := newCachedFixture(t)
	ctx := context.Background()

	prim := newMockProvider(FixerName)
	failure := rates.NewConnectivityError(FixerName, errors.New("timeout"))
	prim.On("FetchRates", mock.Anything).Return(nil, failure).Once()
	p := newCached(prim, store)

	_, err := p.FetchRates(ctx)
	assert.ErrorIs(t, err, rates.ErrConnectivity)
	assert.Empty(t, mr.Keys())

	// Second call - provider should be called again
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.1), nil).Once()
	snap, err := p.FetchRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.1, snap.Rates["USD"])
	prim.AssertExpectations(t)
}

func TestCachedRatesProvider_CacheUnavailable(t *testing.T) {
	mr, store := newCachedFixture(t)
	mr.SetError("READONLY You can't write against a read only replica")

	prim := newMockProvider(FixerName)
	p := newCached(prim, store)

	_, err := p.FetchRates(context.Background())
	assert.ErrorIs(t, err, cache.ErrCacheUnavailable)
	assert.True(t, rates.IsConnectivity(err))
	prim.AssertNotCalled(t, "FetchRates", mock.Anything)
}

func TestCachedRatesProvider_CorruptCacheIsRefetched(t *testing.T) {
	mr, store := newCachedFixture(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(cache.KeyTimestamp, "not-a-number"))

	prim := newMockProvider(FixerName)
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.1), nil).Once()
	p := newCached(prim, store)

	_, err := p.FetchRates(ctx)
	require.NoError(t, err)

	ts, ok, err := store.Timestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testNow.Unix(), ts)
	prim.AssertExpectations(t)
}

func TestCachedRatesProvider_WrongTypeRatesKeyIsRefetched(t *testing.T) {
	mr, store := newCachedFixture(t)
	ctx := context.Background()
	require.NoError(t, store.PutSnapshot(ctx, snapshotAt(testNow.Unix(), 1.1)))
	mr.Del(cache.KeyRates)
	require.NoError(t, mr.Set(cache.KeyRates, "not-a-hash"))

	prim := newMockProvider(FixerName)
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.2), nil).Once()
	p := newCached(prim, store)

	snap, err := p.FetchRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.2, snap.Rates["USD"])
	prim.AssertExpectations(t)

	stored, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.2, stored.Rates["USD"])
}

// writeFailingStore reads like an empty cache and rejects every write.
type writeFailingStore struct {
	puts int
}

func (s *writeFailingStore) Timestamp(context.Context) (int64, bool, error) { return 0, false, nil }

func (s *writeFailingStore) Snapshot(context.Context) (*rates.Snapshot, error) {
	return nil, cache.ErrSnapshotNotFound
}

func (s *writeFailingStore) PutSnapshot(context.Context, *rates.Snapshot) error {
	s.puts++
	return rates.NewConnectivityError("cache", cache.ErrCacheUnavailable)
}

func TestCachedRatesProvider_WriteFailureStillServes(t *testing.T) {
	store := &writeFailingStore{}
	prim := newMockProvider(FixerName)
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.1), nil).Once()
	p := newCached(prim, store)

	snap, err := p.FetchRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.1, snap.Rates["USD"])
	assert.Equal(t, 1, store.puts)
}

func TestCachedRatesProvider_RefreshIgnoresFreshness(t *testing.T) {
	_, store := newCachedFixture(t)
	ctx := context.Background()
	require.NoError(t, store.PutSnapshot(ctx, snapshotAt(testNow.Unix(), 1.1)))

	prim := newMockProvider(FixerName)
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix()+1, 1.2), nil).Once()
	p := newCached(prim, store)

	snap, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.2, snap.Rates["USD"])
	prim.AssertExpectations(t)
}

func TestCachedRatesProvider_CallersGetCopies(t *testing.T) {
	_, store := newCachedFixture(t)
	prim := newMockProvider(FixerName)
	prim.On("FetchRates", mock.Anything).Return(snapshotAt(testNow.Unix(), 1.1), nil)
	p := newCached(prim, store)

	var wg sync.WaitGroup
	results := make([]*rates.Snapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := p.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	wg.Wait()

	results[0].Rates["USD"] = 99
	for _, snap := range results[1:] {
		assert.Equal(t, 1.1, snap.Rates["USD"])
	}
}

// slowProvider answers after delay unless its context is done first.
type slowProvider struct {
	delay   time.Duration
	snap    *rates.Snapshot
	started chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newSlowProvider(delay time.Duration) *slowProvider {
	return &slowProvider{delay: delay, snap: snapshotAt(testNow.Unix(), 1.1), started: make(chan struct{})}
}

func (s *slowProvider) Name() string { return FixerName }

func (s *slowProvider) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	s.calls.Add(1)
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return nil, rates.NewConnectivityError(FixerName, ctx.Err())
	case <-time.After(s.delay):
		return s.snap.Clone(), nil
	}
}

func TestCachedRatesProvider_ShortDeadlineDoesNotFailOtherCallers(t *testing.T) {
	_, store := newCachedFixture(t)
	prov := newSlowProvider(200 * time.Millisecond)
	p := newCached(prov, store)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var (
		wg       sync.WaitGroup
		shortErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, shortErr = p.FetchRates(shortCtx)
	}()
	<-prov.started

	snap, err := p.FetchRates(context.Background())
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, 1.1, snap.Rates["USD"])
	assert.ErrorIs(t, shortErr, context.DeadlineExceeded)
	assert.Equal(t, int32(1), prov.calls.Load())

	stored, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix(), stored.Timestamp)
}

func TestCachedRatesProvider_CancelledCallerStillPersists(t *testing.T) {
	_, store := newCachedFixture(t)
	prov := newSlowProvider(100 * time.Millisecond)
	p := newCached(prov, store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.FetchRates(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool {
		_, ok, err := store.Timestamp(context.Background())
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCachedRatesProvider_RefreshTimeout(t *testing.T) {
	_, store := newCachedFixture(t)
	prov := newSlowProvider(time.Second)
	p := newCached(prov, store)
	p.timeout = 20 * time.Millisecond

	_, err := p.FetchRates(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, rates.IsConnectivity(err))
}
