// Package price implements the USD Price Oracle (C2): a TTL cache in front
// of an HTTP DEX quote provider.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// quoteResponse models the subset of a Jupiter/Dexscreener-shaped response
// this oracle consumes: a list of pairs, each with a USD price and a
// liquidity figure used to pick the most liquid pair.
type quoteResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// Oracle resolves the USD value of token amounts, caching quotes for TTL.
type Oracle struct {
	httpClient *http.Client
	quoteURL   string
	ttl        time.Duration
	logger     zerolog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates an Oracle backed by the given quote endpoint base URL
// (e.g. "https://api.dexscreener.com/latest/dex/tokens").
func New(quoteURL string, ttl time.Duration, logger zerolog.Logger) *Oracle {
	return &Oracle{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		quoteURL:   quoteURL,
		ttl:        ttl,
		logger:     logger.With().Str("component", "price_oracle").Logger(),
		cache:      make(map[string]cacheEntry),
	}
}

// USDValue resolves rawAmount (scaled by decimals) of tokenMint to USD.
// Returns (value, true) on success, or (0, false) if the price could not
// be resolved — callers must treat that as "usd unknown", not zero.
func (o *Oracle) USDValue(ctx context.Context, tokenMint string, rawAmount uint64, decimals int) (float64, bool) {
	priceUsd, ok := o.resolvePrice(ctx, tokenMint)
	if !ok {
		return 0, false
	}

	divisor := 1.0
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}
	return float64(rawAmount) / divisor * priceUsd, true
}

func (o *Oracle) resolvePrice(ctx context.Context, tokenMint string) (float64, bool) {
	if p, ok := o.lookupCache(tokenMint); ok {
		return p, true
	}

	price, err := o.fetchUpstream(ctx, tokenMint)
	if err != nil {
		o.logger.Warn().Err(err).Str("mint", tokenMint).Msg("price fetch failed")
		return 0, false
	}

	o.mu.Lock()
	o.cache[tokenMint] = cacheEntry{price: price, fetchedAt: time.Now()}
	o.mu.Unlock()
	return price, true
}

func (o *Oracle) lookupCache(tokenMint string) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.cache[tokenMint]
	if !ok {
		return 0, false
	}
	if time.Since(entry.fetchedAt) >= o.ttl {
		return 0, false
	}
	return entry.price, true
}

func (o *Oracle) fetchUpstream(ctx context.Context, tokenMint string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/%s", o.quoteURL, tokenMint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("price: build request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price: upstream call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("price: upstream HTTP %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("price: malformed upstream response: %w", err)
	}

	return bestPrice(body.Pairs)
}

// bestPrice selects the pair with greatest USD liquidity whose priceUsd
// parses as a positive, finite number.
func bestPrice(pairs []pair) (float64, error) {
	var best float64
	var bestLiquidity float64
	found := false

	for _, p := range pairs {
		price, err := parsePositiveFinite(p.PriceUsd)
		if err != nil {
			continue
		}
		if !found || p.Liquidity.USD > bestLiquidity {
			best = price
			bestLiquidity = p.Liquidity.USD
			found = true
		}
	}

	if !found {
		return 0, fmt.Errorf("price: no pair with a usable priceUsd")
	}
	return best, nil
}

func parsePositiveFinite(s string) (float64, error) {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0, err
	}
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("price: priceUsd %q is not positive and finite", s)
	}
	return f, nil
}
