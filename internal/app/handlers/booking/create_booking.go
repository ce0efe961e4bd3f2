package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/dto"
	handlersupport "stayhub/internal/app/handlers/support"
	"stayhub/internal/app/identity"
	"stayhub/internal/app/middleware"
	"stayhub/internal/app/outbox"
	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainrange "stayhub/internal/domain/shared/daterange"
	domainuser "stayhub/internal/domain/user"
)

const createBookingKey = "booking.create"

type CreateBookingCommand struct {
	CommandID       string `json:"-"`
	Caller          string `json:"-"`
	PropertyID      string `json:"propertyId" validate:"required"`
	PropertyType    string `json:"propertyType" validate:"required"`
	CheckIn         string `json:"checkInDate" validate:"required"`
	CheckOut        string `json:"checkOutDate" validate:"required"`
	GuestCount      int    `json:"guestCount" validate:"gte=1"`
	SpecialRequests string `json:"specialRequests" validate:"max=2000"`
	IdempotencyKeyV string `json:"-"`
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) CallerIdentity() string { return c.Caller }

// The key is scoped to the caller so two guests cannot replay each other's results.
func (c CreateBookingCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.IdempotencyKeyV)
	if key == "" {
		return ""
	}
	return createBookingKey + ":" + domainuser.NormalizeEmail(c.Caller) + ":" + key
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	caller := domainuser.NormalizeEmail(cmd.Caller)
	if caller == "" {
		return nil, identity.ErrUnauthenticated
	}
	ref, err := domainproperty.ParseRef(cmd.PropertyID, cmd.PropertyType)
	if err != nil {
		return nil, err
	}
	dr, err := domainrange.Parse(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}

	var created *domainbooking.Booking
	err = handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		guest, err := unit.Users().ByEmail(ctx, caller)
		if err != nil {
			return err
		}
		prop, err := unit.Properties().ByRef(ctx, ref)
		if err != nil {
			return err
		}
		host, err := unit.Users().ByEmail(ctx, prop.HostIdentity)
		if err != nil {
			if errors.Is(err, domainuser.ErrNotFound) {
				return domainuser.ErrHostNotFound
			}
			return err
		}
		if host.Name == "" {
			host.Name = prop.HostName
		}

		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:              domainbooking.BookingID(cmd.CommandID),
			Guest:           guest,
			Host:            host,
			Property:        prop,
			Range:           dr,
			GuestCount:      cmd.GuestCount,
			SpecialRequests: cmd.SpecialRequests,
			CreatedAt:       h.now(),
		})
		if err != nil {
			return err
		}

		// Early answer for the common case; Insert re-checks atomically.
		conflict, err := domainbooking.NewAvailabilityChecker(unit.Booking()).HasConflict(ctx, ref, dr.CheckIn, dr.CheckOut)
		if err != nil {
			return err
		}
		if conflict {
			return domainbooking.ErrDateConflict
		}
		if err := unit.Booking().Insert(ctx, b); err != nil {
			return err
		}

		pending := b.PendingEvents()
		b.ClearEvents()
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking created",
			"booking_id", created.ID,
			"property", created.Property.Key(),
			"guest", created.Guest.Identity,
			"range", created.Range.String(),
			"total", created.TotalPrice.Amount,
		)
	}
	out := dto.MapBooking(created)
	return &out, nil
}

func (h *CreateBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
