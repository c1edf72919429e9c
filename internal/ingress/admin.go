package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/onchainsignal/tracker/internal/model"
)

// WalletRegistry is the subset of the Subscription Registry the admin
// surface mutates.
type WalletRegistry interface {
	ListWallets(skip, limit int) ([]model.TrackedWallet, error)
	WalletCount() (int64, error)
	AddWallet(addr, addedBy string) (bool, error)
	RemoveWallet(addr string) error
	AddPushSubscription(userID, class, pushKey string) error
	RemovePushSubscription(userID, class string) error
	AddChatSubscriber(userID string) error
	RemoveChatSubscriber(userID string) error
}

// ProvisioningClient manages webhook registration with the upstream
// transaction-webhook provider. It is out of core-pipeline scope: the
// core pipeline only consumes what the provider pushes to /webhook.
type ProvisioningClient interface {
	ListWebhooks(ctx context.Context) ([]ProvisionedWebhook, error)
	GetWebhook(ctx context.Context, id string) (*ProvisionedWebhook, error)
	CreateWebhook(ctx context.Context, req CreateWebhookRequest) (*ProvisionedWebhook, error)
	AddWallets(ctx context.Context, webhookID string, addresses []string) error
	RemoveWallets(ctx context.Context, webhookID string, addresses []string) error
	DeleteWebhook(ctx context.Context, id string) error
}

// ProvisionedWebhook describes a webhook registration on the upstream
// provider.
type ProvisionedWebhook struct {
	ID              string   `json:"id"`
	WebhookURL      string   `json:"webhook_url"`
	AccountAddresses []string `json:"account_addresses"`
}

// CreateWebhookRequest is the payload used to register a new upstream
// webhook.
type CreateWebhookRequest struct {
	WebhookURL       string   `json:"webhook_url"`
	AccountAddresses []string `json:"account_addresses"`
}

// AdminHandler mounts the wallet/subscription/provisioning admin surface.
// Explicitly out of core-pipeline scope: it only manipulates the registry
// and the upstream provider, never the alert evaluation path directly.
type AdminHandler struct {
	registry     WalletRegistry
	provisioning ProvisioningClient
}

// NewAdminHandler builds the admin handler.
func NewAdminHandler(registry WalletRegistry, provisioning ProvisioningClient) *AdminHandler {
	return &AdminHandler{registry: registry, provisioning: provisioning}
}

// Routes mounts the admin handler's endpoints onto r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/wallets", h.listWallets)
	r.Post("/wallets", h.addWallet)
	r.Delete("/wallets/{address}", h.removeWallet)

	r.Post("/subscriptions/push", h.addPushSubscription)
	r.Delete("/subscriptions/push/{userID}/{class}", h.removePushSubscription)
	r.Post("/subscriptions/chat", h.addChatSubscriber)
	r.Delete("/subscriptions/chat/{userID}", h.removeChatSubscriber)

	r.Get("/provisioning/webhooks", h.listProvisionedWebhooks)
	r.Get("/provisioning/webhooks/{id}", h.getProvisionedWebhook)
	r.Post("/provisioning/webhooks", h.createProvisionedWebhook)
	r.Post("/provisioning/webhooks/{id}/wallets", h.addProvisionedWallets)
	r.Delete("/provisioning/webhooks/{id}/wallets", h.removeProvisionedWallets)
	r.Delete("/provisioning/webhooks/{id}", h.deleteProvisionedWebhook)
}

func (h *AdminHandler) listWallets(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	wallets, err := h.registry.ListWallets(skip, limit)
	if err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

type addWalletRequest struct {
	Address string `json:"address"`
	AddedBy string `json:"added_by"`
}

func (h *AdminHandler) addWallet(w http.ResponseWriter, r *http.Request) {
	var req addWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
		return
	}

	created, err := h.registry.AddWallet(req.Address, req.AddedBy)
	if err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"created": created})
}

func (h *AdminHandler) removeWallet(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if err := h.registry.RemoveWallet(address); err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pushSubscriptionRequest struct {
	UserID  string `json:"user_id"`
	Class   string `json:"class"`
	PushKey string `json:"push_key"`
}

func (h *AdminHandler) addPushSubscription(w http.ResponseWriter, r *http.Request) {
	var req pushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.PushKey == "" {
		http.Error(w, `{"error":"user_id and push_key are required"}`, http.StatusBadRequest)
		return
	}
	if err := h.registry.AddPushSubscription(req.UserID, req.Class, req.PushKey); err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) removePushSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	class := chi.URLParam(r, "class")
	if err := h.registry.RemovePushSubscription(userID, class); err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatSubscriberRequest struct {
	UserID string `json:"user_id"`
}

func (h *AdminHandler) addChatSubscriber(w http.ResponseWriter, r *http.Request) {
	var req chatSubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
		return
	}
	if err := h.registry.AddChatSubscriber(req.UserID); err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) removeChatSubscriber(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.registry.RemoveChatSubscriber(userID); err != nil {
		http.Error(w, `{"error":"registry unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listProvisionedWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.provisioning.ListWebhooks(r.Context())
	if err != nil {
		http.Error(w, `{"error":"provisioning call failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (h *AdminHandler) getProvisionedWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := h.provisioning.GetWebhook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"provisioning call failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

func (h *AdminHandler) createProvisionedWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"malformed request"}`, http.StatusBadRequest)
		return
	}
	hook, err := h.provisioning.CreateWebhook(r.Context(), req)
	if err != nil {
		http.Error(w, `{"error":"provisioning call failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

type walletAddressesRequest struct {
	Addresses []string `json:"addresses"`
}

func (h *AdminHandler) addProvisionedWallets(w http.ResponseWriter, r *http.Request) {
	var req walletAddressesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"malformed request"}`, http.StatusBadRequest)
		return
	}
	if err := h.provisioning.AddWallets(r.Context(), chi.URLParam(r, "id"), req.Addresses); err != nil {
		http.Error(w, `{"error":"provisioning call failed"}`, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) removeProvisionedWallets(w http.ResponseWriter, r *http.Request) {
	var req walletAddressesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"malformed request"}`, http.StatusBadRequest)
		return
	}
	if err := h.provisioning.RemoveWallets(r.Context(), chi.URLParam(r, "id"), req.Addresses); err != nil {
		http.Error(w, `{"error":"provisioning call failed"}`, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) deleteProvisionedWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.provisioning.DeleteWebhook(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, `{"error":"provisioning call failed"}`, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
