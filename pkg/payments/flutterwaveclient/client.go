/**
 * @description
 * This package provides a client for the Flutterwave v3 API. Checkout uses the
 * /v3/payments endpoint, which returns a hosted payment link; amounts are sent
 * in major units. Flutterwave webhooks carry a static secret hash in the
 * verif-hash header rather than a computed signature.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 */
package flutterwaveclient

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ticketrack/payments-service/pkg/payments"
)

const apiBaseURL = "https://api.flutterwave.com"

var ErrInvalidHash = errors.New("invalid flutterwave verif-hash")

// Client is a client for the Flutterwave API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Flutterwave API client.
func NewClient(secretKey string) *Client {
	return &Client{
		BaseURL:   apiBaseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements payments.CheckoutProvider.
func (c *Client) Name() string { return "flutterwave" }

type paymentRequest struct {
	TxRef       string `json:"tx_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
	Customer    struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
	Meta           map[string]string `json:"meta"`
	Customizations struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"customizations"`
}

type paymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// CreateSession creates a Flutterwave payment link for the given spec. The
// session id is our tx_ref; Flutterwave echoes it back in the webhook.
func (c *Client) CreateSession(ctx context.Context, spec payments.SessionSpec) (*payments.SessionResult, error) {
	meta := map[string]string{
		"type":        spec.TargetKind,
		"event_id":    spec.EventID,
		"payer_name":  spec.PayerName,
		"payer_email": spec.PayerEmail,
	}
	if spec.TargetKind == payments.TargetShare {
		meta["share_id"] = spec.TargetID
		meta["split_payment_id"] = spec.SplitPaymentID
	} else {
		meta["order_id"] = spec.TargetID
	}

	payload := paymentRequest{
		TxRef:       spec.Reference,
		Amount:      spec.Amount.StringFixed(2),
		Currency:    spec.Currency,
		RedirectURL: spec.SuccessURL,
		Meta:        meta,
	}
	payload.Customer.Email = spec.PayerEmail
	payload.Customer.Name = spec.PayerName
	payload.Customizations.Title = "Ticketrack"
	payload.Customizations.Description = fmt.Sprintf("Your share - %s", spec.EventTitle)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flutterwave payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v3/payments", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create flutterwave payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute flutterwave payment request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read flutterwave payment response: %w", err)
	}

	var payResp paymentResponse
	if err := json.Unmarshal(bodyBytes, &payResp); err != nil {
		return nil, fmt.Errorf("failed to decode flutterwave payment response (status %d): %w", resp.StatusCode, err)
	}
	if payResp.Status != "success" {
		if payResp.Message == "" {
			return nil, fmt.Errorf("flutterwave payment creation failed (status %d)", resp.StatusCode)
		}
		return nil, fmt.Errorf("flutterwave api error: %s", payResp.Message)
	}

	return &payments.SessionResult{
		Provider:    c.Name(),
		SessionID:   spec.Reference,
		RedirectURL: payResp.Data.Link,
	}, nil
}

// VerifyTransaction confirms a charge server-side by transaction id.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v3/transactions/"+transactionID+"/verify", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create flutterwave verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute flutterwave verify request: %w", err)
	}
	defer resp.Body.Close()

	var verifyResp struct {
		Status string `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return false, fmt.Errorf("failed to decode flutterwave verify response: %w", err)
	}
	return verifyResp.Status == "success" && verifyResp.Data.Status == "successful", nil
}

// VerifyHash checks the verif-hash header against the configured secret hash
// with a constant-time comparison.
func VerifyHash(header, secretHash string) error {
	if header == "" || secretHash == "" {
		return ErrInvalidHash
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(secretHash)) != 1 {
		return ErrInvalidHash
	}
	return nil
}
