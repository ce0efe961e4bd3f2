package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewTokenVerifier("s3cret")
	raw, err := v.Issue("Guest@Example.com", "Gina", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Identity != "guest@example.com" || p.DisplayName != "Gina" {
		t.Fatalf("principal = %+v", p)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewTokenVerifier("s3cret")
	expired, _ := v.Issue("a@example.com", "A", -time.Minute)
	other, _ := NewTokenVerifier("different").Issue("a@example.com", "A", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@example.com"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong secret": other,
		"alg none":     none,
	} {
		if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}
