/**
 * @description
 * This package provides a client for communicating with the ticketing service.
 * It encapsulates the API calls the payments service makes once a payment is
 * confirmed: creating a group order for a completed split and issuing the
 * tickets against it.
 */
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a client for the ticketing service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new ticketing service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// TicketLine is one ticket type and quantity inside an order.
type TicketLine struct {
	TicketTypeID string          `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// CreateGroupOrderRequest defines the request payload for creating a group
// order from a completed split payment.
type CreateGroupOrderRequest struct {
	EventID         string          `json:"event_id"`
	SplitPaymentID  string          `json:"split_payment_id"`
	BuyerEmail      string          `json:"buyer_email"`
	BuyerName       string          `json:"buyer_name"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	PaymentProvider string          `json:"payment_provider"`
	Lines           []TicketLine    `json:"lines"`
}

// CreateGroupOrderResponse defines the response from creating a group order.
type CreateGroupOrderResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TicketCount int    `json:"ticket_count"`
}

// CreateGroupOrder calls the ticketing service to create a paid group order
// and issue its tickets.
func (c *Client) CreateGroupOrder(ctx context.Context, payload CreateGroupOrderRequest) (*CreateGroupOrderResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("ticketing service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/orders/group", c.baseURL)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to ticketing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ticketing service returned error status %d", resp.StatusCode)
	}

	var response CreateGroupOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

// ReleaseHoldRequest defines the request payload for releasing held inventory
// when a split payment expires unpaid.
type ReleaseHoldRequest struct {
	EventID        string `json:"event_id"`
	SplitPaymentID string `json:"split_payment_id"`
}

// ReleaseHold calls the ticketing service to release inventory reserved for a
// split payment that expired before completion.
func (c *Client) ReleaseHold(ctx context.Context, payload ReleaseHoldRequest) error {
	if c.baseURL == "" {
		return fmt.Errorf("ticketing service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/orders/group/release", c.baseURL)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to ticketing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ticketing service returned error status %d", resp.StatusCode)
	}
	return nil
}
