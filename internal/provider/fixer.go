package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"converterservice/internal/rates"
)

var _ RatesProvider = (*FixerProvider)(nil)

// FixerName identifies the primary provider in logs and metrics.
const FixerName = "fixer"

const maxResponseBytes = 4 << 20

// ErrRequestBudgetExhausted is returned when the outbound request budget is spent.
var ErrRequestBudgetExhausted = errors.New("request budget exhausted")

// FixerProvider fetches the latest rates from the fixer.io REST API.
type FixerProvider struct {
	baseURL   string
	accessKey string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewFixerProvider creates a FixerProvider. requestsPerMinute <= 0 disables throttling.
func NewFixerProvider(baseURL, accessKey string, timeoutSec, requestsPerMinute int) *FixerProvider {
	if baseURL == "" {
		baseURL = "http://data.fixer.io/api"
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
	return &FixerProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		client:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		limiter:   limiter,
	}
}

// Name returns the provider name.
func (p *FixerProvider) Name() string { return FixerName }

func (p *FixerProvider) latestURL() string {
	q := url.Values{}
	q.Set("access_key", p.accessKey)
	return p.baseURL + "/latest?" + q.Encode()
}

type fixerError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

type fixerResponse struct {
	Success   *bool              `json:"success"`
	Timestamp int64              `json:"timestamp"`
	Base      string             `json:"base"`
	Date      string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	Error     *fixerError        `json:"error"`
}

// FetchRates returns the latest snapshot stamped with the server-side timestamp.
func (p *FixerProvider) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	snap, err := p.fetch(ctx)
	if err != nil {
		return nil, rates.NewConnectivityError(FixerName, err)
	}
	return snap, nil
}

func (p *FixerProvider) fetch(ctx context.Context) (*rates.Snapshot, error) {
	if !p.limiter.Allow() {
		return nil, ErrRequestBudgetExhausted
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.latestURL(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("fixer API request creation failed: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		// url.Error would echo the access key
		var uErr *url.Error
		if errors.As(err, &uErr) {
			err = uErr.Err
		}
		return nil, fmt.Errorf("fixer API request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fixer API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result fixerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode fixer API response: %w", err)
	}
	if result.Success == nil || !*result.Success {
		if result.Error != nil {
			return nil, fmt.Errorf("fixer API returned success=false: %d %s %s",
				result.Error.Code, result.Error.Type, result.Error.Info)
		}
		return nil, errors.New("fixer API returned success=false")
	}
	if result.Timestamp <= 0 {
		return nil, errors.New("fixer API response has no timestamp")
	}

	snap := &rates.Snapshot{
		Base:      result.Base,
		Rates:     result.Rates,
		Timestamp: result.Timestamp,
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("fixer API response rejected: %w", err)
	}
	return snap, nil
}
