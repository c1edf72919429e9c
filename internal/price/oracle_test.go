package price_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/price"
)

func TestUSDValueFetchesAndCaches(t *testing.T) {
	ctx := context.Background()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{
				{"priceUsd": "2.5", "liquidity": map[string]float64{"usd": 1000}},
				{"priceUsd": "2.6", "liquidity": map[string]float64{"usd": 500}},
			},
		})
	}))
	defer srv.Close()

	o := price.New(srv.URL, time.Minute, zerolog.Nop())

	val, ok := o.USDValue(ctx, "M", 1_000_000_000, 9)
	if !ok {
		t.Fatal("expected successful resolution")
	}
	if val != 2.5 {
		t.Fatalf("expected price from highest-liquidity pair (2.5), got %v", val)
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}

	// Second call within TTL must hit the cache, not upstream (S4).
	if _, ok := o.USDValue(ctx, "M", 1_000_000_000, 9); !ok {
		t.Fatal("expected cached resolution to succeed")
	}
	if calls != 1 {
		t.Fatalf("expected cache hit to avoid a second upstream call, got %d calls", calls)
	}
}

func TestUSDValueMonotonicInAmount(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{
				{"priceUsd": "3.0", "liquidity": map[string]float64{"usd": 100}},
			},
		})
	}))
	defer srv.Close()

	o := price.New(srv.URL, time.Minute, zerolog.Nop())

	small, _ := o.USDValue(ctx, "M", 100, 0)
	large, _ := o.USDValue(ctx, "M", 200, 0)
	if !(large > small) {
		t.Fatalf("expected usd_value to be monotonic in amount: small=%v large=%v", small, large)
	}
}

func TestUSDValueFetchFailureReturnsFalseNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := price.New(srv.URL, time.Minute, zerolog.Nop())

	if _, ok := o.USDValue(ctx, "M", 1, 0); ok {
		t.Fatal("expected failure on upstream 500")
	}

	// The failure must not have been cached: a second call goes upstream again.
	if _, ok := o.USDValue(ctx, "M", 1, 0); ok {
		t.Fatal("expected failure on second upstream 500")
	}
	if calls != 2 {
		t.Fatalf("expected a failed fetch not to be cached (2 upstream calls), got %d", calls)
	}
}
