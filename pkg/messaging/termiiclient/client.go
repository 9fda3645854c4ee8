/**
 * @description
 * This package provides a client for the Termii SMS API, the service's SMS
 * channel for payment reminders and drip campaign steps in African markets.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 * - github.com/ticketrack/payments-service/pkg/messaging: Messenger contract.
 */
package termiiclient

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

const termiiAPIURL = "https://api.ng.termii.com"

// Client is a client for the Termii API.
type Client struct {
	BaseURL    string
	APIKey     string
	SenderID   string
	HTTPClient *http.Client
}

// NewClient creates a new Termii API client. senderID is the registered
// alphanumeric sender, e.g. "Ticketrack".
func NewClient(apiKey, senderID string) *Client {
	return &Client{
		BaseURL:  termiiAPIURL,
		APIKey:   apiKey,
		SenderID: senderID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Channel implements messaging.Messenger.
func (c *Client) Channel() string { return messaging.ChannelSMS }

type sendSMSRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

// Send delivers a single SMS. The message Subject is ignored.
func (c *Client) Send(ctx context.Context, msg messaging.Message) error {
	payload := sendSMSRequest{
		To:      msg.Recipient,
		From:    c.SenderID,
		SMS:     msg.Body,
		Type:    "plain",
		Channel: "generic",
		APIKey:  c.APIKey,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal termii request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/sms/send", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create termii request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute termii request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("termii returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
