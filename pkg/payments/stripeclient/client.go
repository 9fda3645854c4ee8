/**
 * @description
 * This package provides a client for the Stripe Checkout API. It creates hosted
 * Checkout Sessions with the share/order identifiers embedded in session
 * metadata, and verifies Stripe webhook signatures.
 *
 * Key details:
 * - Checkout Sessions are created via the form-encoded /v1/checkout/sessions
 *   endpoint; amounts are minor units (zero-decimal currencies excepted).
 * - Webhook signatures use the Stripe-Signature header scheme
 *   ("t=<unix>,v1=<hmac-sha256 hex>") over "<t>.<raw body>".
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256: Webhook signature verification.
 * - net/http, net/url: Form-encoded API calls.
 */
package stripeclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ticketrack/payments-service/pkg/payments"
)

const apiBaseURL = "https://api.stripe.com"

// DefaultSignatureTolerance bounds how old a webhook timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("invalid stripe webhook signature")
	ErrStaleTimestamp   = errors.New("stripe webhook timestamp outside tolerance")
)

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client.
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
func (c *Client) Name() string { return "stripe" }

// checkoutSessionResponse is the subset of the Checkout Session object we use.
type checkoutSessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *errorResponse) Err() error {
	if e.Error.Message == "" {
		return fmt.Errorf("stripe api error (%s)", e.Error.Type)
	}
	return fmt.Errorf("stripe api error: %s", e.Error.Message)
}

// CreateSession opens a Stripe Checkout Session for the given spec.
func (c *Client) CreateSession(ctx context.Context, spec payments.SessionSpec) (*payments.SessionResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", spec.SuccessURL)
	form.Set("cancel_url", spec.CancelURL)
	form.Set("customer_email", spec.PayerEmail)

	productName := fmt.Sprintf("Your share - %s", spec.EventTitle)
	if spec.TargetKind == payments.TargetOrder {
		productName = fmt.Sprintf("Tickets - %s", spec.EventTitle)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(spec.Currency))
	form.Set("line_items[0][price_data][product_data][name]", productName)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(payments.MinorUnits(spec.Amount, spec.Currency), 10))

	// Session and payment-intent metadata both carry the correlation ids so the
	// webhook can resolve the target from either object.
	metadata := map[string]string{
		"type":        spec.TargetKind,
		"event_id":    spec.EventID,
		"payer_email": spec.PayerEmail,
	}
	if spec.TargetKind == payments.TargetShare {
		metadata["share_id"] = spec.TargetID
		metadata["split_payment_id"] = spec.SplitPaymentID
	} else {
		metadata["order_id"] = spec.TargetID
	}
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
		form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", key), value)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.SecretKey, "")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute stripe session request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stripe session response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return nil, fmt.Errorf("stripe session request failed (status %d)", resp.StatusCode)
		}
		return nil, errResp.Err()
	}

	var session checkoutSessionResponse
	if err := json.Unmarshal(bodyBytes, &session); err != nil {
		return nil, fmt.Errorf("failed to decode stripe session response: %w", err)
	}

	return &payments.SessionResult{
		Provider:    c.Name(),
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

// VerifySignature checks a Stripe-Signature header against the raw payload.
// The header carries a timestamp and one or more v1 HMAC-SHA256 signatures of
// "<timestamp>.<payload>"; comparison is constant-time.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var timestamp int64
	var candidates []string

	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, pair[1])
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleTimestamp
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}
