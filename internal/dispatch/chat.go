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

// ChatClient posts messages to a bot-platform chat API: a channel
// broadcast, or a direct message to one user id.
type ChatClient struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	logger     zerolog.Logger
}

// NewChatClient builds a ChatClient against baseURL (e.g. a bot-platform
// "sendMessage" endpoint root), authenticated with botToken.
func NewChatClient(baseURL, botToken string, logger zerolog.Logger) *ChatClient {
	return &ChatClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		botToken:   botToken,
		logger:     logger.With().Str("component", "chat_client").Logger(),
	}
}

// SendMessage posts text to the given chat/channel/user id.
func (c *ChatClient) SendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chat: marshal failed: %w", err)
	}

	url := c.baseURL + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat: build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("chat_id", chatID).Msg("chat send failed")
		return fmt.Errorf("chat: request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		c.logger.Error().Int("status", resp.StatusCode).Str("chat_id", chatID).Msg("chat API error")
		return fmt.Errorf("chat: HTTP %d", resp.StatusCode)
	}
	return nil
}
