// Package fx supplies USD-anchored exchange rate tables for fan-out
// pricing, with a TTL cache and a static fallback.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed rate endpoint response size (1MB)
const maxResponseSize = 1 << 20

// Table is a USD-based multiplier table. Rates["USD"] is always 1.0.
type Table struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
	TTL       time.Duration      `json:"ttl"`
}

// Rate returns the multiplier for a currency code
func (t *Table) Rate(currencyCode string) (float64, bool) {
	r, ok := t.Rates[currencyCode]
	return r, ok
}

// Provider fetches exchange rates with a bounded timeout and TTL cache,
// falling back to a static table on any failure. It never returns an
// error to its caller.
type Provider struct {
	cache       RateCache
	client      *http.Client
	endpointURL string
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithHTTPClient overrides the HTTP client used for live fetches
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) { p.client = client }
}

// WithClock overrides the provider's clock
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates an exchange rate provider
func NewProvider(cache RateCache, endpointURL string, fetchTimeout, ttl time.Duration, logger *zap.Logger, opts ...ProviderOption) *Provider {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	p := &Provider{
		cache:       cache,
		client:      &http.Client{Timeout: fetchTimeout},
		endpointURL: endpointURL,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rates returns a USD-anchored rate table. When override is non-empty
// it is used directly (with USD forced to 1.0) and the network is never
// consulted. Otherwise a cached table is returned if fresh, else a live
// fetch is attempted, and on any failure the static fallback table is
// returned. Rates never fails.
func (p *Provider) Rates(ctx context.Context, override map[string]float64) *Table {
	if len(override) > 0 {
		rates := make(map[string]float64, len(override)+1)
		for code, rate := range override {
			rates[code] = rate
		}
		rates["USD"] = 1.0
		return &Table{Base: "USD", Rates: rates, FetchedAt: p.now(), TTL: p.ttl}
	}

	if table, ok := p.cache.Get(ctx); ok {
		return table
	}

	table, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("exchange rate fetch failed, using fallback table",
			zap.String("endpoint", p.endpointURL),
			zap.Error(err),
		)
		return p.fallback()
	}

	p.cache.Set(ctx, table)
	return table
}

// rateResponse matches the open.er-api.com response shape
type rateResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (p *Provider) fetch(ctx context.Context) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpointURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &fetchError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	var parsed rateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Rates) == 0 {
		return nil, errNoRates
	}

	rates := make(map[string]float64, len(parsed.Rates)+1)
	for code, rate := range parsed.Rates {
		if rate > 0 {
			rates[code] = rate
		}
	}
	rates["USD"] = 1.0

	return &Table{Base: "USD", Rates: rates, FetchedAt: p.now(), TTL: p.ttl}, nil
}

// fallback returns the static table used when the live fetch fails
func (p *Provider) fallback() *Table {
	return &Table{
		Base: "USD",
		Rates: map[string]float64{
			"USD": 1.0,
			"EUR": 0.92,
			"GBP": 0.79,
			"INR": 83.3,
		},
		FetchedAt: p.now(),
		TTL:       p.ttl,
	}
}

type fetchError struct {
	status int
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("unexpected status %d from rate endpoint", e.status)
}

var errNoRates = errors.New("rate response contained no rates")
