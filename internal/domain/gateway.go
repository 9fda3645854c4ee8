/**
 * @description
 * Payment gateway configuration. One row per provider per country; a checkout
 * selects the active row for the event's country with provider-specific
 * fallback regions. Secrets are stored encrypted at rest and decrypted by the
 * database layer before reaching this struct.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Supported payment providers.
const (
	ProviderStripe      = "stripe"
	ProviderPaystack    = "paystack"
	ProviderFlutterwave = "flutterwave"
	ProviderPayPal      = "paypal"
)

// GatewayConfig is one provider's credentials for one country.
type GatewayConfig struct {
	ID            uuid.UUID `json:"id"`
	Provider      string    `json:"provider"`
	CountryCode   string    `json:"country_code"`
	IsActive      bool      `json:"is_active"`
	SecretKey     string    `json:"-"`
	PublicKey     string    `json:"public_key"`
	WebhookSecret string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GatewayFallbackRegions returns the country codes to try, in order, when
// selecting a gateway config for an event country. Mirrors the regions each
// provider actually operates in.
func GatewayFallbackRegions(provider, countryCode string) []string {
	switch provider {
	case ProviderStripe:
		return dedupeRegions(countryCode, "GB", "US")
	case ProviderPaystack, ProviderFlutterwave:
		return dedupeRegions(countryCode, "NG")
	case ProviderPayPal:
		return dedupeRegions(countryCode, "US")
	default:
		return dedupeRegions(countryCode)
	}
}

func dedupeRegions(codes ...string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
