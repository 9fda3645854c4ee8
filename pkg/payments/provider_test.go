package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type namedProvider struct {
	name   string
	secret string
}

func (p *namedProvider) Name() string { return p.name }

func (p *namedProvider) CreateSession(ctx context.Context, spec SessionSpec) (*SessionResult, error) {
	return &SessionResult{Provider: p.name}, nil
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"NGN major to kobo", "5000.00", "NGN", 500000},
		{"USD with cents", "19.99", "USD", 1999},
		{"rounds half up", "10.005", "USD", 1001},
		{"JPY has no minor unit", "5000", "JPY", 5000},
		{"XOF has no minor unit", "2500", "xof", 2500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MinorUnits(decimal.RequireFromString(tc.amount), tc.currency)
			if got != tc.want {
				t.Fatalf("MinorUnits(%s, %s) = %d, want %d", tc.amount, tc.currency, got, tc.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register("Paystack", func(secretKey string) CheckoutProvider {
		return &namedProvider{name: "paystack", secret: secretKey}
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		provider, err := registry.Provider("PAYSTACK", "sk_test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.Name() != "paystack" {
			t.Fatalf("unexpected provider %q", provider.Name())
		}
	})

	t.Run("unknown provider returns ErrUnknownProvider", func(t *testing.T) {
		if _, err := registry.Provider("square", "sk_test"); !errors.Is(err, ErrUnknownProvider) {
			t.Fatalf("expected ErrUnknownProvider, got %v", err)
		}
	})

	t.Run("factory receives the secret key", func(t *testing.T) {
		provider, err := registry.Provider("paystack", "sk_live_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.(*namedProvider).secret != "sk_live_1" {
			t.Fatalf("expected secret to reach the factory, got %q", provider.(*namedProvider).secret)
		}
	})
}
