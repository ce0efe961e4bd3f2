package booking

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"stayhub/internal/app/dto"
	handlersupport "stayhub/internal/app/handlers/support"
	"stayhub/internal/app/identity"
	"stayhub/internal/app/queries"
	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
	domainuser "stayhub/internal/domain/user"
)

const (
	getBookingKey         = "booking.get"
	listGuestBookingsKey  = "booking.list.guest"
	listHostBookingsKey   = "booking.list.host"
	allStatusesFilterWord = "all"
)

type GetBookingQuery struct {
	Caller    string
	BookingID string
}

func (q GetBookingQuery) Key() string            { return getBookingKey }
func (q GetBookingQuery) CallerIdentity() string { return q.Caller }

type ListGuestBookingsQuery struct {
	Caller string
	Status string
}

func (q ListGuestBookingsQuery) Key() string            { return listGuestBookingsKey }
func (q ListGuestBookingsQuery) CallerIdentity() string { return q.Caller }

type ListHostBookingsQuery struct {
	Caller string
	Status string
}

func (q ListHostBookingsQuery) Key() string            { return listHostBookingsKey }
func (q ListHostBookingsQuery) CallerIdentity() string { return q.Caller }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
	Policy     domainbooking.Policy
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	caller := domainuser.NormalizeEmail(q.Caller)
	if caller == "" {
		return nil, identity.ErrUnauthenticated
	}
	id := strings.TrimSpace(q.BookingID)
	if id == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Booking().ByID(execCtx, domainbooking.BookingID(id))
	if err != nil {
		return nil, err
	}
	if _, err := domainbooking.Authorize(h.Policy, caller, b, domainbooking.ActionRead); err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	return listBookings(ctx, h.UoWFactory, h.Logger, "guest", q.Caller, q.Status, domainbooking.Repository.ListByGuest)
}

type ListHostBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListHostBookingsHandler) Handle(ctx context.Context, q ListHostBookingsQuery) (dto.BookingCollection, error) {
	return listBookings(ctx, h.UoWFactory, h.Logger, "host", q.Caller, q.Status, domainbooking.Repository.ListByHost)
}

type lister func(repo domainbooking.Repository, ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error)

func listBookings(ctx context.Context, factory uow.UoWFactory, logger *slog.Logger, side, caller, status string, list lister) (dto.BookingCollection, error) {
	caller = domainuser.NormalizeEmail(caller)
	if caller == "" {
		return dto.BookingCollection{}, identity.ErrUnauthenticated
	}
	filter, err := parseFilter(status)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, factory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	items, err := list(unit.Booking(), execCtx, caller, filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if logger != nil {
		logger.Debug("bookings listed", "side", side, "caller", caller, "count", len(items), "status", filter.Status)
	}
	return dto.MapBookings(items), nil
}

func parseFilter(raw string) (domainbooking.ListFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, allStatusesFilterWord) {
		return domainbooking.ListFilter{}, nil
	}
	st, err := domainbooking.ParseStatus(raw)
	if err != nil {
		return domainbooking.ListFilter{}, err
	}
	return domainbooking.ListFilter{Status: st}, nil
}

var _ queries.Handler[GetBookingQuery, *dto.Booking] = (*GetBookingHandler)(nil)
var _ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
var _ queries.Handler[ListHostBookingsQuery, dto.BookingCollection] = (*ListHostBookingsHandler)(nil)
