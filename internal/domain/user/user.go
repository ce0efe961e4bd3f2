package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmailRequired = errors.New("user: email is required")
	ErrNotFound      = errors.New("user: not found")
	ErrHostNotFound  = fmt.Errorf("%w: host", ErrNotFound)
)

// Profile is the part of a registered user the booking core reads: the stable
// identity (email) and the display name snapshotted onto bookings.
type Profile struct {
	Email string
	Name  string
}

// Directory resolves profiles by identity. Registration and profile editing
// live outside this service.
type Directory interface {
	ByEmail(ctx context.Context, email string) (*Profile, error)
}

func NewProfile(email, name string) (*Profile, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	return &Profile{Email: email, Name: strings.TrimSpace(name)}, nil
}

// NormalizeEmail trims and lower-cases an identity for comparisons and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
