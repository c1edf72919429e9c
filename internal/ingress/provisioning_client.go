package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPProvisioningClient manages upstream webhook registration over the
// provider's REST API. Used only by the admin surface — the core pipeline
// never calls it.
type HTTPProvisioningClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// NewHTTPProvisioningClient builds a ProvisioningClient against baseURL,
// authenticated with apiKey.
func NewHTTPProvisioningClient(baseURL, apiKey string, logger zerolog.Logger) *HTTPProvisioningClient {
	return &HTTPProvisioningClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With().Str("component", "provisioning_client").Logger(),
	}
}

func (c *HTTPProvisioningClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("provisioning: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("provisioning: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provisioning: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Error().Int("status", resp.StatusCode).Str("path", path).Msg("provisioning API error")
		return fmt.Errorf("provisioning: HTTP %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListWebhooks lists every upstream webhook registration.
func (c *HTTPProvisioningClient) ListWebhooks(ctx context.Context) ([]ProvisionedWebhook, error) {
	var hooks []ProvisionedWebhook
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

// GetWebhook fetches one registration by id.
func (c *HTTPProvisioningClient) GetWebhook(ctx context.Context, id string) (*ProvisionedWebhook, error) {
	var hook ProvisionedWebhook
	if err := c.do(ctx, http.MethodGet, "/webhooks/"+id, nil, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// CreateWebhook registers a new webhook with the provider.
func (c *HTTPProvisioningClient) CreateWebhook(ctx context.Context, req CreateWebhookRequest) (*ProvisionedWebhook, error) {
	var hook ProvisionedWebhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", req, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// AddWallets appends addresses to webhookID's tracked account list.
func (c *HTTPProvisioningClient) AddWallets(ctx context.Context, webhookID string, addresses []string) error {
	return c.do(ctx, http.MethodPut, "/webhooks/"+webhookID+"/addAddresses", map[string]interface{}{
		"accountAddresses": addresses,
	}, nil)
}

// RemoveWallets removes addresses from webhookID's tracked account list.
func (c *HTTPProvisioningClient) RemoveWallets(ctx context.Context, webhookID string, addresses []string) error {
	return c.do(ctx, http.MethodPut, "/webhooks/"+webhookID+"/removeAddresses", map[string]interface{}{
		"accountAddresses": addresses,
	}, nil)
}

// DeleteWebhook deletes a webhook registration.
func (c *HTTPProvisioningClient) DeleteWebhook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/webhooks/"+id, nil, nil)
}
