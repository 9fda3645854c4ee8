/**
 * @description
 * This package provides a client for the Telegram Bot API. Organizers who link
 * a Telegram chat receive operational notifications (split completed, split
 * expired) through this channel.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 * - github.com/ticketrack/payments-service/pkg/messaging: Messenger contract.
 */
package telegramclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ticketrack/payments-service/pkg/messaging"
)

const telegramAPIURL = "https://api.telegram.org"

// Client is a client for the Telegram Bot API.
type Client struct {
	BaseURL    string
	BotToken   string
	HTTPClient *http.Client
}

// NewClient creates a new Telegram Bot API client.
func NewClient(botToken string) *Client {
	return &Client{
		BaseURL:  telegramAPIURL,
		BotToken: botToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Channel implements messaging.Messenger.
func (c *Client) Channel() string { return messaging.ChannelTelegram }

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send delivers a single message. Recipient is the target chat ID.
func (c *Client) Send(ctx context.Context, msg messaging.Message) error {
	payload := sendMessageRequest{
		ChatID:    msg.Recipient,
		Text:      msg.Body,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.BotToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
