package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/events"
	"stayhub/internal/domain/shared/money"
	"stayhub/internal/domain/user"
)

type BookingID string

// Party is a guest or host identity with the display name captured at creation.
type Party struct {
	Identity    string
	DisplayName string
}

type Booking struct {
	ID                 BookingID
	Guest              Party
	Host               Party
	Property           property.Ref
	PropertyTitle      string
	Range              daterange.DateRange
	Nights             int
	PricePerNight      money.Money
	TotalPrice         money.Money
	GuestCount         int
	SpecialRequests    string
	Status             Status
	PaymentStatus      PaymentStatus
	CancellationReason string
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

// ListFilter narrows guest/host listings; a zero Status matches every status.
type ListFilter struct {
	Status Status
}

func (f ListFilter) Matches(b *Booking) bool {
	return f.Status == "" || b.Status == f.Status
}

// Repository is the Booking Store. Insert and Transition are the only writes and
// both are atomic with respect to concurrent callers.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ListByGuest(ctx context.Context, identity string, filter ListFilter) ([]*Booking, error)
	ListByHost(ctx context.Context, identity string, filter ListFilter) ([]*Booking, error)
	ConflictFinder
	// Insert persists a new booking, failing with ErrDateConflict when another
	// date-holding booking of the same property overlaps its range.
	Insert(ctx context.Context, b *Booking) error
	// Transition stores b only if the persisted status still equals from and the
	// version is unchanged; otherwise it fails with ErrInvalidState.
	Transition(ctx context.Context, b *Booking, from Status) error
}

type CreateParams struct {
	ID              BookingID
	Guest           *user.Profile
	Host            *user.Profile
	Property        *property.Property
	Range           daterange.DateRange
	GuestCount      int
	SpecialRequests string
	CreatedAt       time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guest == nil || strings.TrimSpace(params.Guest.Email) == "" {
		return nil, fmt.Errorf("%w: guest identity required", ErrInvalidInput)
	}
	if params.Host == nil || strings.TrimSpace(params.Host.Email) == "" {
		return nil, fmt.Errorf("%w: host identity required", ErrInvalidInput)
	}
	if params.Property == nil {
		return nil, fmt.Errorf("%w: property required", ErrInvalidInput)
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.GuestCount < 1 {
		return nil, fmt.Errorf("%w: guest count must be at least 1", ErrInvalidInput)
	}
	price := params.Property.PricePerNight
	if price.Amount < 0 {
		return nil, fmt.Errorf("%w: price per night cannot be negative", ErrInvalidInput)
	}
	nights := params.Range.Nights()
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:              params.ID,
		Guest:           Party{Identity: user.NormalizeEmail(params.Guest.Email), DisplayName: params.Guest.Name},
		Host:            Party{Identity: user.NormalizeEmail(params.Host.Email), DisplayName: params.Host.Name},
		Property:        params.Property.Ref,
		PropertyTitle:   params.Property.Title,
		Range:           params.Range,
		Nights:          nights,
		PricePerNight:   price,
		TotalPrice:      price.Multiply(int64(nights)),
		GuestCount:      params.GuestCount,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.Record(BookingCreated{
		BookingID:  b.ID,
		Property:   b.Property,
		GuestID:    b.Guest.Identity,
		HostID:     b.Host.Identity,
		Range:      b.Range,
		GuestCount: b.GuestCount,
		TotalPrice: b.TotalPrice,
		At:         now,
	})
	return b, nil
}

// AssignID sets the identifier of a booking that has not been persisted yet and
// patches already recorded events.
func (b *Booking) AssignID(id BookingID) {
	b.ID = id
	pending := b.PendingEvents()
	b.ClearEvents()
	for _, ev := range pending {
		if created, ok := ev.(BookingCreated); ok {
			created.BookingID = id
			ev = created
		}
		b.Record(ev)
	}
}

func (b *Booking) Confirm(now time.Time) error {
	if !b.Status.CanTransitionTo(StatusConfirmed) {
		return ErrConfirmRequiresPending
	}
	at := now.UTC()
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentPaid
	b.ConfirmedAt = &at
	b.UpdatedAt = at
	b.Record(BookingConfirmed{BookingID: b.ID, Property: b.Property, Range: b.Range, Total: b.TotalPrice, At: at})
	return nil
}

func (b *Booking) Cancel(by, reason string, now time.Time) error {
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return ErrCancelNotAllowed
	}
	at := now.UTC()
	refund := money.Money{Currency: b.TotalPrice.Currency}
	if b.PaymentStatus == PaymentPaid {
		refund = b.TotalPrice
	}
	b.Status = StatusCancelled
	b.PaymentStatus = PaymentRefunded
	b.CancellationReason = strings.TrimSpace(reason)
	b.CancelledAt = &at
	b.UpdatedAt = at
	b.Record(BookingCancelled{BookingID: b.ID, Property: b.Property, CancelledBy: by, Reason: b.CancellationReason, Refund: refund, At: at})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if !b.Status.CanTransitionTo(StatusCompleted) {
		return ErrCompleteRequiresConfirmed
	}
	at := now.UTC()
	b.Status = StatusCompleted
	b.UpdatedAt = at
	b.Record(BookingCompleted{BookingID: b.ID, Property: b.Property, At: at})
	return nil
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.EventRecorder = events.EventRecorder{}
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
