/**
 * @description
 * This package provides a client for the Paystack API. Checkout uses the
 * transaction-initialize endpoint, which returns a hosted authorization URL;
 * amounts are sent in subunits (kobo/pesewas). Webhooks are authenticated with
 * an HMAC-SHA512 hex signature of the raw body in x-paystack-signature.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ticketrack/payments-service/pkg/payments"
)

const apiBaseURL = "https://api.paystack.co"

var ErrInvalidSignature = errors.New("invalid paystack webhook signature")

// Client is a client for the Paystack API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
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
func (c *Client) Name() string { return "paystack" }

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// CreateSession initializes a Paystack transaction and returns its hosted
// authorization URL.
func (c *Client) CreateSession(ctx context.Context, spec payments.SessionSpec) (*payments.SessionResult, error) {
	metadata := map[string]string{
		"type":        spec.TargetKind,
		"event_id":    spec.EventID,
		"payer_name":  spec.PayerName,
		"payer_email": spec.PayerEmail,
	}
	if spec.TargetKind == payments.TargetShare {
		metadata["share_id"] = spec.TargetID
		metadata["split_payment_id"] = spec.SplitPaymentID
	} else {
		metadata["order_id"] = spec.TargetID
	}

	payload := initializeRequest{
		Email:       spec.PayerEmail,
		Amount:      payments.MinorUnits(spec.Amount, spec.Currency),
		Currency:    spec.Currency,
		Reference:   spec.Reference,
		CallbackURL: spec.SuccessURL,
		Metadata:    metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paystack initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/transaction/initialize", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create paystack initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute paystack initialize request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read paystack initialize response: %w", err)
	}

	var initResp initializeResponse
	if err := json.Unmarshal(bodyBytes, &initResp); err != nil {
		return nil, fmt.Errorf("failed to decode paystack initialize response (status %d): %w", resp.StatusCode, err)
	}
	if !initResp.Status {
		if initResp.Message == "" {
			return nil, fmt.Errorf("paystack initialize failed (status %d)", resp.StatusCode)
		}
		return nil, fmt.Errorf("paystack api error: %s", initResp.Message)
	}

	return &payments.SessionResult{
		Provider:    c.Name(),
		SessionID:   initResp.Data.Reference,
		RedirectURL: initResp.Data.AuthorizationURL,
	}, nil
}

// VerifyTransaction confirms a transaction status server-side by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create paystack verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute paystack verify request: %w", err)
	}
	defer resp.Body.Close()

	var verifyResp struct {
		Status bool `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return false, fmt.Errorf("failed to decode paystack verify response: %w", err)
	}
	return verifyResp.Status && verifyResp.Data.Status == "success", nil
}

// VerifySignature checks the x-paystack-signature header: an HMAC-SHA512 hex
// digest of the raw body keyed with the secret key, compared constant-time.
func VerifySignature(payload []byte, signature, secret string) error {
	if signature == "" || secret == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}
