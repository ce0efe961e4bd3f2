package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/dto"
	handlersupport "stayhub/internal/app/handlers/support"
	"stayhub/internal/app/identity"
	"stayhub/internal/app/outbox"
	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
	domainuser "stayhub/internal/domain/user"
)

const (
	confirmBookingKey  = "booking.confirm"
	cancelBookingKey   = "booking.cancel"
	completeBookingKey = "booking.complete"
)

type ConfirmBookingCommand struct {
	Caller    string
	BookingID string `validate:"required"`
}

func (c ConfirmBookingCommand) Key() string            { return confirmBookingKey }
func (c ConfirmBookingCommand) CallerIdentity() string { return c.Caller }

type CancelBookingCommand struct {
	Caller    string
	BookingID string `validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

func (c CancelBookingCommand) Key() string            { return cancelBookingKey }
func (c CancelBookingCommand) CallerIdentity() string { return c.Caller }

type CompleteBookingCommand struct {
	Caller    string
	BookingID string `validate:"required"`
}

func (c CompleteBookingCommand) Key() string            { return completeBookingKey }
func (c CompleteBookingCommand) CallerIdentity() string { return c.Caller }

// transitioner runs the shared load, authorize, mutate and compare-and-set sequence.
type transitioner struct {
	UoWFactory uow.UoWFactory
	Policy     domainbooking.Policy
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (t *transitioner) run(ctx context.Context, caller, bookingID string, action domainbooking.Action, mutate func(b *domainbooking.Booking, now time.Time) error) (*dto.Booking, error) {
	caller = domainuser.NormalizeEmail(caller)
	if caller == "" {
		return nil, identity.ErrUnauthenticated
	}
	id := strings.TrimSpace(bookingID)
	if id == "" {
		return nil, domainbooking.ErrBookingNotFound
	}

	var updated *domainbooking.Booking
	err := handlersupport.WithinUnit(ctx, t.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Booking().ByID(ctx, domainbooking.BookingID(id))
		if err != nil {
			return err
		}
		if _, err := domainbooking.Authorize(t.Policy, caller, b, action); err != nil {
			return err
		}
		from := b.Status
		if err := mutate(b, t.now()); err != nil {
			return err
		}
		if err := unit.Booking().Transition(ctx, b, from); err != nil {
			return err
		}
		pending := b.PendingEvents()
		b.ClearEvents()
		if err := outbox.RecordDomainEvents(ctx, t.Outbox, t.encoder(), pending); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if t.Logger != nil {
		t.Logger.Info("booking "+string(action),
			"booking_id", updated.ID,
			"caller", caller,
			"status", updated.Status,
			"payment_status", updated.PaymentStatus,
		)
	}
	out := dto.MapBooking(updated)
	return &out, nil
}

func (t *transitioner) encoder() outbox.EventEncoder {
	if t.Encoder != nil {
		return t.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (t *transitioner) now() time.Time {
	if t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

type ConfirmBookingHandler struct {
	transitioner
}

func NewConfirmBookingHandler(factory uow.UoWFactory, policy domainbooking.Policy, box outbox.Outbox, logger *slog.Logger) *ConfirmBookingHandler {
	return &ConfirmBookingHandler{transitioner{UoWFactory: factory, Policy: policy, Outbox: box, Logger: logger}}
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.Booking, error) {
	return h.run(ctx, cmd.Caller, cmd.BookingID, domainbooking.ActionConfirm, func(b *domainbooking.Booking, now time.Time) error {
		return b.Confirm(now)
	})
}

type CancelBookingHandler struct {
	transitioner
}

func NewCancelBookingHandler(factory uow.UoWFactory, policy domainbooking.Policy, box outbox.Outbox, logger *slog.Logger) *CancelBookingHandler {
	return &CancelBookingHandler{transitioner{UoWFactory: factory, Policy: policy, Outbox: box, Logger: logger}}
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	caller := domainuser.NormalizeEmail(cmd.Caller)
	return h.run(ctx, caller, cmd.BookingID, domainbooking.ActionCancel, func(b *domainbooking.Booking, now time.Time) error {
		return b.Cancel(caller, cmd.Reason, now)
	})
}

type CompleteBookingHandler struct {
	transitioner
}

func NewCompleteBookingHandler(factory uow.UoWFactory, policy domainbooking.Policy, box outbox.Outbox, logger *slog.Logger) *CompleteBookingHandler {
	return &CompleteBookingHandler{transitioner{UoWFactory: factory, Policy: policy, Outbox: box, Logger: logger}}
}

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*dto.Booking, error) {
	return h.run(ctx, cmd.Caller, cmd.BookingID, domainbooking.ActionComplete, func(b *domainbooking.Booking, now time.Time) error {
		return b.Complete(now)
	})
}

var _ commands.Handler[ConfirmBookingCommand, *dto.Booking] = (*ConfirmBookingHandler)(nil)
var _ commands.Handler[CancelBookingCommand, *dto.Booking] = (*CancelBookingHandler)(nil)
var _ commands.Handler[CompleteBookingCommand, *dto.Booking] = (*CompleteBookingHandler)(nil)
