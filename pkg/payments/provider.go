/**
 * @description
 * This package defines the unified checkout-provider abstraction. Every payment
 * gateway (Stripe, Paystack, Flutterwave, PayPal) implements CheckoutProvider;
 * the application layer selects one by name from a Registry built with the
 * gateway credentials configured for the event's country.
 *
 * Amount units are provider-specific and must not be conflated: Stripe and
 * Paystack bill in minor units (cents/kobo), Flutterwave and PayPal in major
 * units. SessionSpec carries amounts in major units as decimals; each client
 * converts at the wire boundary.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/shopspring/decimal: Monetary amounts.
 */
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Target kinds embedded in provider metadata for webhook correlation.
const (
	TargetOrder = "order"
	TargetShare = "split_payment"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

// SessionSpec describes one hosted-checkout session to open, regardless of
// which target (order or share) is being paid for.
type SessionSpec struct {
	TargetKind     string // TargetOrder or TargetShare
	TargetID       string // order id or share id
	SplitPaymentID string // parent request id, set for share targets
	EventID        string
	EventTitle     string
	PayerEmail     string
	PayerName      string
	Amount         decimal.Decimal // major units
	Currency       string
	Reference      string // our transaction reference, for providers that require one
	SuccessURL     string
	CancelURL      string
}

// SessionResult is the provider's answer: where to send the payer and which
// reference to persist for webhook correlation.
type SessionResult struct {
	Provider    string
	SessionID   string
	RedirectURL string
}

// CheckoutProvider opens hosted checkout sessions with one payment gateway.
type CheckoutProvider interface {
	Name() string
	CreateSession(ctx context.Context, spec SessionSpec) (*SessionResult, error)
}

// Registry builds providers by name from per-country gateway credentials.
type Registry struct {
	factories map[string]func(secretKey string) CheckoutProvider
}

// NewRegistry returns a registry with all supported providers registered.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]func(string) CheckoutProvider{}}
}

// Register adds a provider factory under the given name.
func (r *Registry) Register(name string, factory func(secretKey string) CheckoutProvider) {
	r.factories[strings.ToLower(name)] = factory
}

// Provider instantiates the named provider with the given secret key.
func (r *Registry) Provider(name, secretKey string) (CheckoutProvider, error) {
	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return factory(secretKey), nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// zeroDecimalCurrencies are ISO currencies with no minor unit; providers that
// bill in minor units take these amounts as-is.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// MinorUnits converts a major-unit amount to the smallest currency unit,
// rounding half-up the way the gateways round.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
