/**
 * @description
 * This package provides a client for the WhatsApp Cloud API (Meta Graph API).
 * The payments service uses it to deliver payment reminders and drip campaign
 * steps over WhatsApp for contacts who opted in to the channel.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 * - github.com/ticketrack/payments-service/pkg/messaging: Messenger contract.
 */
package whatsappclient

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

const graphAPIURL = "https://graph.facebook.com/v19.0"

// Client is a client for the WhatsApp Cloud API.
type Client struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	HTTPClient    *http.Client
}

// NewClient creates a new WhatsApp Cloud API client. phoneNumberID is the
// sending business phone number's Graph API ID.
func NewClient(accessToken, phoneNumberID string) *Client {
	return &Client{
		BaseURL:       graphAPIURL,
		AccessToken:   accessToken,
		PhoneNumberID: phoneNumberID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Channel implements messaging.Messenger.
func (c *Client) Channel() string { return messaging.ChannelWhatsApp }

type sendMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

// Send delivers a single text message. The message Subject is ignored.
func (c *Client) Send(ctx context.Context, msg messaging.Message) error {
	payload := sendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               msg.Recipient,
		Type:             "text",
		Text:             textPayload{Body: msg.Body},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
