package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stayhub/internal/app/identity"
)

var ErrInvalidToken = errors.New("security: invalid or expired token")

// Claims mirrors the payload issued by the login service.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	UserType string `json:"userType,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier decodes HS256 bearer tokens into a caller principal.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(raw string) (identity.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return identity.Principal{}, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return identity.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.Email) == "" {
		return identity.Principal{}, ErrInvalidToken
	}
	p := identity.Principal{Identity: strings.ToLower(strings.TrimSpace(claims.Email)), DisplayName: claims.Name}
	if claims.UserType != "" {
		p.Roles = []string{claims.UserType}
	}
	return p, nil
}

// Issue signs a token for the given principal. The booking service only
// verifies tokens; Issue exists for fixtures and tests.
func (v *TokenVerifier) Issue(email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:    email,
		Name:     name,
		UserType: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
