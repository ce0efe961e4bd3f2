package property

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stayhub/internal/domain/shared/money"
)

var (
	ErrInvalidType     = errors.New("property: invalid property type")
	ErrIDRequired      = errors.New("property: id is required")
	ErrNotFound        = errors.New("property: not found")
	ErrHomeNotFound    = fmt.Errorf("%w: home", ErrNotFound)
	ErrServiceNotFound = fmt.Errorf("%w: service", ErrNotFound)
)

type ID string

// Type selects the directory a property is resolved against.
type Type string

const (
	TypeHome    Type = "home"
	TypeService Type = "service"
)

func ParseType(raw string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeHome:
		return TypeHome, nil
	case TypeService:
		return TypeService, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}
}

// Ref identifies a listing across both directories.
type Ref struct {
	ID   ID
	Type Type
}

func ParseRef(id, kind string) (Ref, error) {
	t, err := ParseType(kind)
	if err != nil {
		return Ref{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Ref{}, ErrIDRequired
	}
	return Ref{ID: ID(id), Type: t}, nil
}

// Key is a stable string form used for lock documents and cache keys.
func (r Ref) Key() string {
	return string(r.Type) + ":" + string(r.ID)
}

// Property is a read-only snapshot of a home or service listing.
type Property struct {
	Ref
	Title         string
	PricePerNight money.Money
	Capacity      int
	HostIdentity  string
	HostName      string
}

// Directory resolves listings by reference; the booking core never mutates them.
type Directory interface {
	ByRef(ctx context.Context, ref Ref) (*Property, error)
}

// NotFound returns the not-found error matching the property type.
func NotFound(t Type) error {
	if t == TypeService {
		return ErrServiceNotFound
	}
	return ErrHomeNotFound
}
