package ingress

import (
	"context"
	"encoding/json"
	"net/http"
)

// PriceStatsHandler serves GET /stats/price.
type PriceStatsHandler struct {
	targetMint string
	price      PriceResolver
}

// NewPriceStatsHandler builds the price diagnostics endpoint.
func NewPriceStatsHandler(targetMint string, price PriceResolver) *PriceStatsHandler {
	return &PriceStatsHandler{targetMint: targetMint, price: price}
}

func (h *PriceStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	usd, ok := h.price.USDValue(r.Context(), h.targetMint, 1, 0)
	if !ok {
		http.Error(w, `{"error":"price unavailable"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mint":      h.targetMint,
		"price_usd": usd,
	})
}

// TestNotificationsChatClient sends one canned chat message.
type TestNotificationsChatClient interface {
	DispatchChat(ctx context.Context, message string) error
}

// TestNotificationsPushClient sends one canned push to one recipient.
type TestNotificationsPushClient interface {
	Send(ctx context.Context, pushKey, title, body string) error
}

// PushKeySource supplies a single push key to exercise, if any subscriber
// exists.
type PushKeySource func() (pushKey string, ok error)

// TestNotificationsHandler serves POST /test/notifications.
type TestNotificationsHandler struct {
	chat       TestNotificationsChatClient
	push       TestNotificationsPushClient
	firstPushKey PushKeySource
}

// NewTestNotificationsHandler builds the test-notification endpoint.
func NewTestNotificationsHandler(chat TestNotificationsChatClient, push TestNotificationsPushClient, firstPushKey PushKeySource) *TestNotificationsHandler {
	return &TestNotificationsHandler{chat: chat, push: push, firstPushKey: firstPushKey}
}

func (h *TestNotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result := map[string]bool{}

	chatErr := h.chat.DispatchChat(r.Context(), "this is a test notification")
	result["chat"] = chatErr == nil

	pushKey, err := h.firstPushKey()
	if err == nil && pushKey != "" {
		pushErr := h.push.Send(r.Context(), pushKey, "Test", "this is a test notification")
		result["push"] = pushErr == nil
	} else {
		result["push"] = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
