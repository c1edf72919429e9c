package ingress_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/ingress"
	"github.com/onchainsignal/tracker/internal/model"
)

type fakePrice struct{}

func (fakePrice) USDValue(ctx context.Context, tokenMint string, rawAmount uint64, decimals int) (float64, bool) {
	return 1.0, true
}

type countingEngine struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

func newCountingEngine(expected int) *countingEngine {
	return &countingEngine{done: make(chan struct{}, expected)}
}

func (e *countingEngine) Evaluate(ctx context.Context, ev model.TransferEvent) error {
	e.mu.Lock()
	e.count++
	e.mu.Unlock()
	e.done <- struct{}{}
	return nil
}

// S5 from spec.md: webhook batch ack with one malformed element.
func TestWebhookBatchAckCountsProcessedAndSkipped(t *testing.T) {
	engine := newCountingEngine(2)
	h := ingress.NewHandler("M", fakePrice{}, engine, zerolog.Nop())
	defer h.Close()

	batch := []map[string]interface{}{
		{
			"signature": "s1",
			"timestamp": 1_700_000_000,
			"feePayer":  "W1",
			"tokenTransfers": []map[string]interface{}{
				{"fromUserAccount": "X", "toUserAccount": "W1", "mint": "M", "tokenAmount": 100},
			},
		},
		{
			"signature": "s2",
			"timestamp": 1_700_000_001,
			"feePayer":  "W2",
			"tokenTransfers": []map[string]interface{}{
				{"fromUserAccount": "W2", "toUserAccount": "Y", "mint": "M", "tokenAmount": 50},
			},
		},
		{
			// missing signature: malformed
			"timestamp": 1_700_000_002,
		},
	}
	body, _ := json.Marshal(batch)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct{ Processed, Skipped, Total int }
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || resp.Processed != 2 || resp.Skipped != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-engine.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for async pipeline processing")
		}
	}
}

func TestWebhookSingleObjectBody(t *testing.T) {
	engine := newCountingEngine(1)
	h := ingress.NewHandler("M", fakePrice{}, engine, zerolog.Nop())
	defer h.Close()

	payload := map[string]interface{}{
		"signature": "s1",
		"timestamp": 1_700_000_000,
		"feePayer":  "W1",
		"tokenTransfers": []map[string]interface{}{
			{"fromUserAccount": "X", "toUserAccount": "W1", "mint": "M", "tokenAmount": 100},
		},
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp struct{ Processed, Skipped, Total int }
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Total != 1 || resp.Processed != 1 {
		t.Fatalf("unexpected response for single-object body: %+v", resp)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return assertErr }

var assertErr = errString("ping failed")

type errString string

func (e errString) Error() string { return string(e) }

// S6 from spec.md: health degraded.
func TestHealthHandlerReports503WhenPingFails(t *testing.T) {
	h := ingress.NewHealthHandler(failingPinger{}, ingress.HealthThresholds{ChatThresholdUSD: 500}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status     string `json:"status"`
		Thresholds struct {
			ChatThresholdUSD float64 `json:"chat_threshold_usd"`
		} `json:"thresholds"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Thresholds.ChatThresholdUSD != 500 {
		t.Fatalf("expected thresholds to still be reported on a degraded health check, got %+v", body)
	}
}
