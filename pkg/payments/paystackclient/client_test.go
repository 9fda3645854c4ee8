package paystackclient

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_abc"
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	sign := func(body []byte, key string) string {
		mac := hmac.New(sha512.New, []byte(key))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("accepts a valid signature", func(t *testing.T) {
		if err := VerifySignature(payload, sign(payload, secret), secret); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects a signature from the wrong key", func(t *testing.T) {
		if err := VerifySignature(payload, sign(payload, "sk_test_other"), secret); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		sig := sign(payload, secret)
		if err := VerifySignature([]byte(`{"event":"charge.success","data":{"reference":"ref_2"}}`), sig, secret); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		if err := VerifySignature(payload, "", secret); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})
}
