/**
 * @description
 * This package provides a client for the Resend transactional email API. The
 * payments service uses it for split-payment lifecycle emails: share invites,
 * payment reminders, fully-paid confirmations, and drip campaign steps.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 * - github.com/ticketrack/payments-service/pkg/messaging: Messenger contract.
 */
package resendclient

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

const resendAPIURL = "https://api.resend.com"

// Client is a client for the Resend API.
type Client struct {
	BaseURL    string
	APIKey     string
	FromEmail  string
	HTTPClient *http.Client
}

// NewClient creates a new Resend API client. fromEmail is the verified sender
// address, e.g. "Ticketrack <tickets@mg.ticketrack.app>".
func NewClient(apiKey, fromEmail string) *Client {
	return &Client{
		BaseURL:   resendAPIURL,
		APIKey:    apiKey,
		FromEmail: fromEmail,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Channel implements messaging.Messenger.
func (c *Client) Channel() string { return messaging.ChannelEmail }

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers a single HTML email.
func (c *Client) Send(ctx context.Context, msg messaging.Message) error {
	payload := sendEmailRequest{
		From:    c.FromEmail,
		To:      []string{msg.Recipient},
		Subject: msg.Subject,
		HTML:    msg.Body,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create resend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
