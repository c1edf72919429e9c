package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthPinger checks liveness of the window-store backend.
type HealthPinger interface {
	Ping(ctx context.Context) error
}

// HealthThresholds mirrors the configured alert thresholds for display.
type HealthThresholds struct {
	ChatThresholdUSD       float64 `json:"chat_threshold_usd"`
	SingleThresholdUSD     float64 `json:"single_threshold_usd"`
	CumulativeThresholdUSD float64 `json:"cumulative_threshold_usd"`
	WindowSeconds          int64   `json:"window_seconds"`
}

type healthBody struct {
	Status           string           `json:"status"`
	Thresholds       HealthThresholds `json:"thresholds"`
	WalletCount      int64            `json:"wallet_count"`
	SubscriberCount  int              `json:"subscriber_count"`
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	pinger     HealthPinger
	thresholds HealthThresholds
	walletFn   func() (int64, error)
	subFn      func() (int, error)
}

// NewHealthHandler builds the health endpoint.
func NewHealthHandler(pinger HealthPinger, thresholds HealthThresholds, walletFn func() (int64, error), subFn func() (int, error)) *HealthHandler {
	return &HealthHandler{pinger: pinger, thresholds: thresholds, walletFn: walletFn, subFn: subFn}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := healthBody{Status: "healthy", Thresholds: h.thresholds}

	if h.walletFn != nil {
		if count, err := h.walletFn(); err == nil {
			body.WalletCount = count
		}
	}
	if h.subFn != nil {
		if count, err := h.subFn(); err == nil {
			body.SubscriberCount = count
		}
	}

	status := http.StatusOK
	if err := h.pinger.Ping(ctx); err != nil {
		body.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
