package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainrange "stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/money"
)

type bookingRow struct {
	ID                 string `gorm:"primaryKey"`
	GuestID            string
	GuestName          string
	HostID             string
	HostName           string
	PropertyID         string
	PropertyType       string
	PropertyKey        string
	PropertyTitle      string
	CheckIn            time.Time
	CheckOut           time.Time
	Nights             int
	PricePerNight      int64
	TotalPrice         int64
	Currency           string
	GuestCount         int
	SpecialRequests    string
	Status             string
	PaymentStatus      string
	CancellationReason string
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	UpdatedAt          time.Time
	Version            int64
}

func (bookingRow) TableName() string { return "bookings" }

// BookingRepository relies on the bookings_no_overlap exclusion constraint for
// atomic conflict detection and on a version predicate for transitions.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var row bookingRow
	err := conn(ctx, r.db).Where("id = ?", string(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return row.toAggregate(), nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "guest_id = ?", identity, filter)
}

func (r *BookingRepository) ListByHost(ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "host_id = ?", identity, filter)
}

func (r *BookingRepository) list(ctx context.Context, where, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	query := conn(ctx, r.db).Where(where, strings.ToLower(strings.TrimSpace(identity)))
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []bookingRow
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toAggregate())
	}
	return out, nil
}

func (r *BookingRepository) HasConflict(ctx context.Context, ref domainproperty.Ref, dr domainrange.DateRange) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&bookingRow{}).
		Where("property_key = ?", ref.Key()).
		Where("status IN ?", []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}).
		Where("check_in < ? AND check_out > ?", dr.CheckOut, dr.CheckIn).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	if b == nil {
		return fmt.Errorf("%w: booking required", domainbooking.ErrInvalidInput)
	}
	if strings.TrimSpace(string(b.ID)) == "" {
		b.AssignID(domainbooking.BookingID(uuid.NewString()))
	}
	row := newBookingRow(b)
	row.Version = 1
	result := conn(ctx, r.db).Create(&row)
	if err := result.Error; err != nil {
		if pgCode(err) == exclusionViolation {
			return domainbooking.ErrDateConflict
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: booking %s already exists", domainbooking.ErrInvalidInput, b.ID)
		}
		return mapTxErr(err)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("postgres: booking %s not created", b.ID)
	}
	b.Version = 1
	return nil
}

func (r *BookingRepository) Transition(ctx context.Context, b *domainbooking.Booking, from domainbooking.Status) error {
	if b == nil {
		return fmt.Errorf("%w: booking required", domainbooking.ErrInvalidInput)
	}
	if !from.CanTransitionTo(b.Status) {
		return fmt.Errorf("%w: %s to %s", domainbooking.ErrInvalidState, from, b.Status)
	}
	next := b.Version + 1
	result := conn(ctx, r.db).Model(&bookingRow{}).
		Where("id = ? AND status = ? AND version = ?", string(b.ID), string(from), b.Version).
		Updates(map[string]any{
			"status":              string(b.Status),
			"payment_status":      string(b.PaymentStatus),
			"cancellation_reason": b.CancellationReason,
			"confirmed_at":        b.ConfirmedAt,
			"cancelled_at":        b.CancelledAt,
			"updated_at":          b.UpdatedAt,
			"version":             next,
		})
	if err := result.Error; err != nil {
		return mapTxErr(err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %s changed concurrently", domainbooking.ErrInvalidState, b.ID)
	}
	b.Version = next
	return nil
}

func newBookingRow(b *domainbooking.Booking) bookingRow {
	return bookingRow{
		ID:                 string(b.ID),
		GuestID:            b.Guest.Identity,
		GuestName:          b.Guest.DisplayName,
		HostID:             b.Host.Identity,
		HostName:           b.Host.DisplayName,
		PropertyID:         string(b.Property.ID),
		PropertyType:       string(b.Property.Type),
		PropertyKey:        b.Property.Key(),
		PropertyTitle:      b.PropertyTitle,
		CheckIn:            b.Range.CheckIn,
		CheckOut:           b.Range.CheckOut,
		Nights:             b.Nights,
		PricePerNight:      b.PricePerNight.Amount,
		TotalPrice:         b.TotalPrice.Amount,
		Currency:           b.TotalPrice.Currency,
		GuestCount:         b.GuestCount,
		SpecialRequests:    b.SpecialRequests,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
	}
}

func (row bookingRow) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:                 domainbooking.BookingID(row.ID),
		Guest:              domainbooking.Party{Identity: row.GuestID, DisplayName: row.GuestName},
		Host:               domainbooking.Party{Identity: row.HostID, DisplayName: row.HostName},
		Property:           domainproperty.Ref{ID: domainproperty.ID(row.PropertyID), Type: domainproperty.Type(row.PropertyType)},
		PropertyTitle:      row.PropertyTitle,
		Range:              domainrange.DateRange{CheckIn: domainrange.Date(row.CheckIn), CheckOut: domainrange.Date(row.CheckOut)},
		Nights:             row.Nights,
		PricePerNight:      money.Money{Amount: row.PricePerNight, Currency: row.Currency},
		TotalPrice:         money.Money{Amount: row.TotalPrice, Currency: row.Currency},
		GuestCount:         row.GuestCount,
		SpecialRequests:    row.SpecialRequests,
		Status:             domainbooking.Status(row.Status),
		PaymentStatus:      domainbooking.PaymentStatus(row.PaymentStatus),
		CancellationReason: row.CancellationReason,
		CreatedAt:          row.CreatedAt.UTC(),
		ConfirmedAt:        row.ConfirmedAt,
		CancelledAt:        row.CancelledAt,
		UpdatedAt:          row.UpdatedAt.UTC(),
		Version:            row.Version,
	}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
