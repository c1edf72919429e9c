package dispatch

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

// PushClient sends push notifications over an Expo-style POST, one request
// per recipient, with body {to, title, body, sound, priority}.
type PushClient struct {
	httpClient *http.Client
	apiURL     string
	appToken   string
	logger     zerolog.Logger
}

// NewPushClient builds a PushClient against apiURL, authenticated with
// appToken.
func NewPushClient(apiURL, appToken string, logger zerolog.Logger) *PushClient {
	return &PushClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		apiURL:     apiURL,
		appToken:   appToken,
		logger:     logger.With().Str("component", "push_client").Logger(),
	}
}

// Send pushes a single notification to pushKey.
func (p *PushClient) Send(ctx context.Context, pushKey, title, body string) error {
	payload := map[string]interface{}{
		"to":       pushKey,
		"title":    title,
		"body":     body,
		"sound":    "default",
		"priority": "high",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push: marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("push: build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.appToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.appToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error().Err(err).Str("push_key", pushKey).Msg("push send failed")
		return fmt.Errorf("push: request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		p.logger.Error().Int("status", resp.StatusCode).Str("push_key", pushKey).Msg("push API error")
		return fmt.Errorf("push: HTTP %d", resp.StatusCode)
	}
	return nil
}
