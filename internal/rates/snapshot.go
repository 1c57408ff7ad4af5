// Package rates defines the exchange rate snapshot shared by the cache, providers and converter.
package rates

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidSnapshot indicates a snapshot that violates the rate invariants.
var ErrInvalidSnapshot = errors.New("invalid rate snapshot")

// Snapshot is one fetched or cached set of exchange rates.
// Every rate is expressed relative to Base.
type Snapshot struct {
	Base      string
	Rates     map[string]float64
	Timestamp int64 // seconds since epoch
}

// Validate checks the snapshot invariants: a base currency, at least one rate,
// only finite non-negative rates and a base rate of exactly 1 when present.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if s.Base == "" {
		return fmt.Errorf("%w: empty base currency", ErrInvalidSnapshot)
	}
	if len(s.Rates) == 0 {
		return fmt.Errorf("%w: no rates", ErrInvalidSnapshot)
	}
	for code, rate := range s.Rates {
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			return fmt.Errorf("%w: rate for %s is %v", ErrInvalidSnapshot, code, rate)
		}
	}
	if r, ok := s.Rates[s.Base]; ok && r != 1 {
		return fmt.Errorf("%w: base %s has rate %v", ErrInvalidSnapshot, s.Base, r)
	}
	return nil
}

// Rate returns the rate of code relative to the base. The base itself always
// resolves to 1, even when the source omitted it from the mapping.
func (s *Snapshot) Rate(code string) (float64, bool) {
	if r, ok := s.Rates[code]; ok {
		return r, true
	}
	if code == s.Base {
		return 1, true
	}
	return 0, false
}

// Currencies returns the codes of the rate mapping in lexical order.
func (s *Snapshot) Currencies() []string {
	codes := make([]string, 0, len(s.Rates))
	for code := range s.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(s.Timestamp, 0))
}

// IsFresh reports whether the snapshot is younger than ttl at now.
// A snapshot exactly ttl old is stale.
func (s *Snapshot) IsFresh(now time.Time, ttl time.Duration) bool {
	return IsFresh(s.Timestamp, now, ttl)
}

// IsFresh reports whether a snapshot fetched at timestamp is still fresh at now.
func IsFresh(timestamp int64, now time.Time, ttl time.Duration) bool {
	return now.Sub(time.Unix(timestamp, 0)) < ttl
}

// Clone returns a deep copy so callers can keep a request-scoped snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := &Snapshot{
		Base:      s.Base,
		Timestamp: s.Timestamp,
		Rates:     make(map[string]float64, len(s.Rates)),
	}
	for code, rate := range s.Rates {
		cp.Rates[code] = rate
	}
	return cp
}
