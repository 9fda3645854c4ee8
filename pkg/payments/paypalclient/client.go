/**
 * @description
 * This package provides a client for the PayPal REST API: OAuth token exchange,
 * order creation (hosted approval link), order capture, and server-side
 * webhook signature verification via /v1/notifications/verify-webhook-signature.
 *
 * PayPal bills in major units. The secret key passed to NewClient is the
 * "client_id:client_secret" pair as configured in the gateway table.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, net/url: Standard Go libraries.
 */
package paypalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ticketrack/payments-service/pkg/payments"
)

const (
	liveBaseURL    = "https://api-m.paypal.com"
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
)

var (
	ErrInvalidSignature = errors.New("paypal webhook verification failed")
	ErrBadCredentials   = errors.New("paypal credentials must be client_id:client_secret")
)

// Client is a client for the PayPal REST API.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// NewClient creates a new PayPal API client from a "client_id:client_secret"
// credential pair.
func NewClient(credentials string) *Client {
	clientID, clientSecret, _ := strings.Cut(credentials, ":")
	return &Client{
		BaseURL:      liveBaseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewSandboxClient creates a client against the PayPal sandbox environment.
func NewSandboxClient(credentials string) *Client {
	c := NewClient(credentials)
	c.BaseURL = sandboxBaseURL
	return c
}

// Name implements payments.CheckoutProvider.
func (c *Client) Name() string { return "paypal" }

// accessToken exchanges client credentials for a bearer token.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", ErrBadCredentials
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create paypal token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.ClientID, c.ClientSecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute paypal token request: %w", err)
	}
	defer resp.Body.Close()

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode paypal token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("paypal token exchange failed (status %d)", resp.StatusCode)
	}
	return tokenResp.AccessToken, nil
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateSession creates a PayPal order and returns its approval link.
func (c *Client) CreateSession(ctx context.Context, spec payments.SessionSpec) (*payments.SessionResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	// custom_id carries the correlation reference; PayPal has no free-form
	// metadata map on orders.
	customID := spec.TargetKind + ":" + spec.TargetID
	if spec.TargetKind == payments.TargetShare {
		customID += ":" + spec.SplitPaymentID
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": spec.Reference,
				"custom_id":    customID,
				"description":  fmt.Sprintf("Ticketrack - %s", spec.EventTitle),
				"amount": map[string]string{
					"currency_code": spec.Currency,
					"value":         spec.Amount.StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": spec.SuccessURL,
			"cancel_url": spec.CancelURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paypal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v2/checkout/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute paypal order request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read paypal order response: %w", err)
	}

	var order orderResponse
	if err := json.Unmarshal(bodyBytes, &order); err != nil {
		return nil, fmt.Errorf("failed to decode paypal order response (status %d): %w", resp.StatusCode, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("paypal order creation failed (status %d)", resp.StatusCode)
	}

	approveURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return nil, errors.New("paypal order response missing approval link")
	}

	return &payments.SessionResult{
		Provider:    c.Name(),
		SessionID:   order.ID,
		RedirectURL: approveURL,
	}, nil
}

// CaptureOrder captures an approved PayPal order and reports whether the
// capture completed.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (bool, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v2/checkout/orders/"+orderID+"/capture", bytes.NewBufferString("{}"))
	if err != nil {
		return false, fmt.Errorf("failed to create paypal capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute paypal capture request: %w", err)
	}
	defer resp.Body.Close()

	var capture orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&capture); err != nil {
		return false, fmt.Errorf("failed to decode paypal capture response: %w", err)
	}
	return capture.Status == "COMPLETED", nil
}

// WebhookVerification carries the headers PayPal signs a webhook delivery with.
type WebhookVerification struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
	WebhookID        string
}

// VerifyWebhookSignature asks PayPal to verify a webhook delivery. Returns
// ErrInvalidSignature unless PayPal answers SUCCESS.
func (c *Client) VerifyWebhookSignature(ctx context.Context, v WebhookVerification, rawEvent json.RawMessage) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"auth_algo":         v.AuthAlgo,
		"cert_url":          v.CertURL,
		"transmission_id":   v.TransmissionID,
		"transmission_sig":  v.TransmissionSig,
		"transmission_time": v.TransmissionTime,
		"webhook_id":        v.WebhookID,
		"webhook_event":     rawEvent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal paypal verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create paypal verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute paypal verification request: %w", err)
	}
	defer resp.Body.Close()

	var verifyResp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return fmt.Errorf("failed to decode paypal verification response: %w", err)
	}
	if verifyResp.VerificationStatus != "SUCCESS" {
		return ErrInvalidSignature
	}
	return nil
}
