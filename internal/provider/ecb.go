package provider

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"converterservice/internal/rates"
)

var _ RatesProvider = (*ECBProvider)(nil)

// ECBName identifies the fallback provider in logs and metrics.
const ECBName = "ecb"

// ECBBase is the base currency of every ECB reference rate.
const ECBBase = "EUR"

// ECBProvider fetches the European Central Bank daily reference rates.
type ECBProvider struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewECBProvider creates a new ECBProvider.
func NewECBProvider(feedURL string, timeoutSec int) *ECBProvider {
	if feedURL == "" {
		feedURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"
	}
	return &ECBProvider{
		url:    feedURL,
		client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		now:    time.Now,
	}
}

// Name returns the provider name.
func (p *ECBProvider) Name() string { return ECBName }

// ecbEnvelope mirrors gesmes:Envelope > Cube > Cube[time] > Cube[currency, rate].
// Local names match regardless of namespace.
type ecbEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Cube    struct {
		Days []ecbDay `xml:"Cube"`
	} `xml:"Cube"`
}

type ecbDay struct {
	Time  string    `xml:"time,attr"`
	Rates []ecbRate `xml:"Cube"`
}

type ecbRate struct {
	Currency string `xml:"currency,attr"`
	Rate     string `xml:"rate,attr"`
}

// FetchRates returns the most recent day of reference rates against EUR.
func (p *ECBProvider) FetchRates(ctx context.Context) (*rates.Snapshot, error) {
	snap, err := p.fetch(ctx)
	if err != nil {
		return nil, rates.NewConnectivityError(ECBName, err)
	}
	return snap, nil
}

func (p *ECBProvider) fetch(ctx context.Context) (*rates.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("ECB feed request creation failed: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ECB feed request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ECB feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var doc ecbEnvelope
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode ECB feed: %w", err)
	}
	return p.snapshotFromDoc(&doc)
}

func (p *ECBProvider) snapshotFromDoc(doc *ecbEnvelope) (*rates.Snapshot, error) {
	if len(doc.Cube.Days) == 0 || len(doc.Cube.Days[0].Rates) == 0 {
		return nil, errors.New("ECB feed has no rates")
	}
	day := doc.Cube.Days[0]

	snap := &rates.Snapshot{
		Base:      ECBBase,
		Rates:     make(map[string]float64, len(day.Rates)),
		Timestamp: p.now().Unix(),
	}
	if t, err := time.Parse(time.DateOnly, day.Time); err == nil {
		snap.Timestamp = t.Unix()
	}

	for _, r := range day.Rates {
		code := strings.TrimSpace(r.Currency)
		if code == "" {
			return nil, errors.New("ECB feed has a rate without currency")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Rate), 64)
		if err != nil {
			return nil, fmt.Errorf("ECB feed rate for %s: %w", code, err)
		}
		snap.Rates[code] = v
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("ECB feed rejected: %w", err)
	}
	return snap, nil
}
