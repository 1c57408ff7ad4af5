package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"converterservice/internal/cache"
	"converterservice/internal/metrics"
	"converterservice/internal/rates"
)

var _ RatesProvider = (*CachedRatesProvider)(nil)

// defaultRefreshTimeout bounds a shared refresh, which outlives the caller that started it.
const defaultRefreshTimeout = 30 * time.Second

// CachedRatesProvider serves a provider's snapshot from the cache while it is
// fresh and refetches and persists it once it goes stale.
type CachedRatesProvider struct {
	provider RatesProvider
	store    cache.Store
	ttl      time.Duration
	timeout  time.Duration
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time
	group    singleflight.Group
}

// NewCachedRatesProvider creates a new CachedRatesProvider.
func NewCachedRatesProvider(provider RatesProvider, store cache.Store, ttl time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *CachedRatesProvider {
	return &CachedRatesProvider{
		provider: provider,
		store:    store,
		ttl:      ttl,
		timeout:  defaultRefreshTimeout,
		log:      logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Name returns the name of the wrapped provider.
func (p *CachedRatesProvider) Name() string {
	return p.provider.Name()
}

// FetchRates returns the cached snapshot when fresh, otherwise fetches a new one.
// An unreachable cache is reported as a connectivity error without calling the provider.
func (p *CachedRatesProvider) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	now := p.now()

	ts, ok, err := p.store.Timestamp(ctx)
	switch {
	case errors.Is(err, cache.ErrCorruptSnapshot):
		p.metrics.CacheLookup(metrics.CacheCorrupt)
		p.log.Warnw("Discarding corrupt cached snapshot", "provider", p.Name(), "error", err)
	case err != nil:
		p.metrics.CacheLookup(metrics.CacheError)
		return nil, err
	case !ok:
		p.metrics.CacheLookup(metrics.CacheMiss)
	case !rates.IsFresh(ts, now, p.ttl):
		p.metrics.CacheLookup(metrics.CacheStale)
		p.log.Debugw("Cached snapshot is stale", "provider", p.Name(), "age_sec", now.Unix()-ts)
	default:
		snap, err := p.store.Snapshot(ctx)
		if err != nil && rates.IsConnectivity(err) {
			p.metrics.CacheLookup(metrics.CacheError)
			return nil, err
		}
		// The timestamp is checked again on the snapshot itself: a writer may
		// have replaced the entry between the two reads.
		if err == nil && snap.IsFresh(now, p.ttl) {
			p.metrics.CacheLookup(metrics.CacheHit)
			return snap, nil
		}
		p.metrics.CacheLookup(metrics.CacheStale)
		if err != nil {
			p.log.Warnw("Cached snapshot unreadable", "provider", p.Name(), "error", err)
		}
	}

	return p.refresh(ctx)
}

// Refresh fetches and persists a new snapshot regardless of the cached one.
func (p *CachedRatesProvider) Refresh(ctx context.Context) (*rates.Snapshot, error) {
	return p.refresh(ctx)
}

// refresh collapses concurrent fetches into one provider call per process.
// The shared fetch runs detached from any single caller so one cancelled request
// cannot fail the others or abort the cache write; each caller stops waiting
// when its own context is done. Each caller receives its own copy of the snapshot.
func (p *CachedRatesProvider) refresh(ctx context.Context) (*rates.Snapshot, error) {
	ch := p.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		snap, err := p.provider.FetchRates(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := p.store.PutSnapshot(fetchCtx, snap); err != nil {
			p.log.Warnw("Failed to persist rate snapshot", "provider", p.Name(), "error", err)
		} else {
			p.log.Infow("Rate snapshot refreshed", "provider", p.Name(), "base", snap.Base,
				"currencies", len(snap.Rates), "timestamp", snap.Timestamp)
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*rates.Snapshot).Clone(), nil
	}
}
