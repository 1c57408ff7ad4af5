// Package cache implements the rate snapshot gateway over the Redis key-value store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"converterservice/internal/rates"
)

// Well-known keys of the cached snapshot.
const (
	KeyTimestamp = "timestamp"
	KeyBase      = "base"
	KeyRates     = "rates"
)

const sourceName = "cache"

var (
	// ErrCacheUnavailable indicates the store could not be reached or refused the command.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrSnapshotNotFound indicates no complete snapshot is stored.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrCorruptSnapshot indicates stored fields that cannot be parsed back into a snapshot.
	ErrCorruptSnapshot = errors.New("corrupt cached snapshot")
)

// Store is the narrow contract the converter needs from the cache.
type Store interface {
	// Timestamp returns the fetch time of the stored snapshot; ok is false when none is stored.
	Timestamp(ctx context.Context) (ts int64, ok bool, err error)
	// Snapshot reads timestamp, base and rates from a single point in time.
	Snapshot(ctx context.Context) (*rates.Snapshot, error)
	// PutSnapshot replaces the stored snapshot as a whole.
	PutSnapshot(ctx context.Context, snap *rates.Snapshot) error
}

var _ Store = (*RedisStore)(nil)

// RedisStore keeps the snapshot in three Redis keys: two strings and a hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. prefix is prepended to every key and may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// wrongTypePrefix starts the reply to a command run against a key holding another type.
const wrongTypePrefix = "WRONGTYPE"

func unavailable(op string, err error) error {
	if isWrongType(err) {
		return fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, op, err)
	}
	return rates.NewConnectivityError(sourceName, fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err))
}

// Timestamp reads the timestamp key.
func (s *RedisStore) Timestamp(ctx context.Context) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.key(KeyTimestamp)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable("get timestamp", err)
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		return 0, false, err
	}
	return ts, true, nil
}

// Snapshot reads all three keys inside one MULTI/EXEC so a concurrent
// PutSnapshot is observed either entirely or not at all.
func (s *RedisStore) Snapshot(ctx context.Context) (*rates.Snapshot, error) {
	var (
		tsCmd    *redis.StringCmd
		baseCmd  *redis.StringCmd
		ratesCmd *redis.MapStringStringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		tsCmd = pipe.Get(ctx, s.key(KeyTimestamp))
		baseCmd = pipe.Get(ctx, s.key(KeyBase))
		ratesCmd = pipe.HGetAll(ctx, s.key(KeyRates))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("read snapshot", err)
	}

	rawTS, tsErr := tsCmd.Result()
	base, baseErr := baseCmd.Result()
	rawRates, ratesErr := ratesCmd.Result()
	if errors.Is(tsErr, redis.Nil) || errors.Is(baseErr, redis.Nil) || len(rawRates) == 0 {
		return nil, ErrSnapshotNotFound
	}
	if e := errors.Join(ignoreNil(tsErr), ignoreNil(baseErr), ratesErr); e != nil {
		return nil, unavailable("read snapshot", e)
	}

	ts, err := parseTimestamp(rawTS)
	if err != nil {
		return nil, err
	}
	parsed := make(map[string]float64, len(rawRates))
	for code, raw := range rawRates {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: rate %s=%q", ErrCorruptSnapshot, code, raw)
		}
		parsed[code] = v
	}

	return &rates.Snapshot{Base: base, Rates: parsed, Timestamp: ts}, nil
}

// PutSnapshot overwrites timestamp, base and rates in one transaction. The old
// rates hash is dropped first so currencies missing from snap do not linger.
func (s *RedisStore) PutSnapshot(ctx context.Context, snap *rates.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	fields := make(map[string]any, len(snap.Rates))
	for code, rate := range snap.Rates {
		fields[code] = strconv.FormatFloat(rate, 'f', -1, 64)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(KeyRates))
		pipe.HSet(ctx, s.key(KeyRates), fields)
		pipe.Set(ctx, s.key(KeyBase), snap.Base, 0)
		pipe.Set(ctx, s.key(KeyTimestamp), strconv.FormatInt(snap.Timestamp, 10), 0)
		return nil
	})
	if err != nil {
		return unavailable("write snapshot", err)
	}
	return nil
}

// Ping checks that the store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func parseTimestamp(raw string) (int64, error) {
	// Older writers stored fractional seconds.
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q", ErrCorruptSnapshot, raw)
	}
	return int64(v), nil
}

// isWrongType reports whether a server reply says a key holds the wrong kind of value.
// Such an entry is corrupt data, not an unreachable cache.
func isWrongType(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && strings.HasPrefix(rerr.Error(), wrongTypePrefix)
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
