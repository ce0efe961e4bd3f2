package booking_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/dto"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/identity"
	"stayhub/internal/app/middleware"
	"stayhub/internal/app/queries"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/money"
	domainuser "stayhub/internal/domain/user"
	"stayhub/internal/infra/storage/memory"
	"stayhub/internal/infra/validation"
)

const (
	guestEmail = "guest@example.com"
	hostEmail  = "host@example.com"
	otherEmail = "other@example.com"
	homeID     = "home-1"
)

type harness struct {
	commands   commands.Bus
	queries    queries.Bus
	bookings   *memory.BookingRepository
	properties *memory.PropertyDirectory
	users      *memory.UserDirectory
	outbox     *memory.Outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bookings:   memory.NewBookingRepository(),
		properties: memory.NewPropertyDirectory(),
		users:      memory.NewUserDirectory(),
		outbox:     memory.NewOutbox(),
	}
	ctx := context.Background()
	for _, u := range []struct{ email, name string }{
		{guestEmail, "Gail"},
		{hostEmail, "Harper"},
		{otherEmail, "Olli"},
	} {
		p, err := domainuser.NewProfile(u.email, u.name)
		if err != nil {
			t.Fatalf("profile: %v", err)
		}
		if err := h.users.Save(ctx, p); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}
	h.addProperty(t, homeID, domainproperty.TypeHome, hostEmail, 10000)

	factory := memory.Factory{BookingRepo: h.bookings, PropertyDir: h.properties, UserDir: h.users}
	now := func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler(cmdBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: factory,
		Outbox:     h.outbox,
		Now:        now,
	})
	commands.RegisterHandler(cmdBus, bookingapp.ConfirmBookingCommand{}.Key(),
		bookingapp.NewConfirmBookingHandler(factory, domainbooking.DefaultPolicy, h.outbox, nil))
	commands.RegisterHandler(cmdBus, bookingapp.CancelBookingCommand{}.Key(),
		bookingapp.NewCancelBookingHandler(factory, domainbooking.DefaultPolicy, h.outbox, nil))
	commands.RegisterHandler(cmdBus, bookingapp.CompleteBookingCommand{}.Key(),
		bookingapp.NewCompleteBookingHandler(factory, domainbooking.DefaultPolicy, h.outbox, nil))
	h.commands = middleware.ChainCommands(
		cmdBus,
		middleware.Validation(validation.New()),
		middleware.Authorization(identity.Authorizer{}),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil, nil),
		middleware.Transaction(factory, nil),
		middleware.OutboxFlush(h.outbox),
	)

	qBus := queries.NewInMemoryBus()
	queries.RegisterHandler(qBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{
		UoWFactory: factory,
		Policy:     domainbooking.DefaultPolicy,
	})
	queries.RegisterHandler(qBus, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{UoWFactory: factory})
	queries.RegisterHandler(qBus, bookingapp.ListHostBookingsQuery{}.Key(), &bookingapp.ListHostBookingsHandler{UoWFactory: factory})
	h.queries = middleware.ChainQueries(qBus, middleware.QueryAuthorization(identity.Authorizer{}))
	return h
}

func (h *harness) addProperty(t *testing.T, id string, kind domainproperty.Type, host string, cents int64) {
	t.Helper()
	err := h.properties.Save(context.Background(), &domainproperty.Property{
		Ref:           domainproperty.Ref{ID: domainproperty.ID(id), Type: kind},
		Title:         "Listing " + id,
		PricePerNight: money.Must(cents, "USD"),
		Capacity:      4,
		HostIdentity:  host,
		HostName:      "Harper",
	})
	if err != nil {
		t.Fatalf("save property: %v", err)
	}
}

func createCmd(caller, checkIn, checkOut string) bookingapp.CreateBookingCommand {
	return bookingapp.CreateBookingCommand{
		Caller:       caller,
		PropertyID:   homeID,
		PropertyType: "home",
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		GuestCount:   2,
	}
}

func (h *harness) create(cmd bookingapp.CreateBookingCommand) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), h.commands, cmd)
}

func (h *harness) mustCreate(t *testing.T, checkIn, checkOut string) *dto.Booking {
	t.Helper()
	b, err := h.create(createCmd(guestEmail, checkIn, checkOut))
	if err != nil {
		t.Fatalf("create %s..%s: %v", checkIn, checkOut, err)
	}
	return b
}

func (h *harness) confirm(caller, id string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.Booking](context.Background(), h.commands,
		bookingapp.ConfirmBookingCommand{Caller: caller, BookingID: id})
}

func (h *harness) cancel(caller, id, reason string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](context.Background(), h.commands,
		bookingapp.CancelBookingCommand{Caller: caller, BookingID: id, Reason: reason})
}

func (h *harness) complete(caller, id string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CompleteBookingCommand, *dto.Booking](context.Background(), h.commands,
		bookingapp.CompleteBookingCommand{Caller: caller, BookingID: id})
}

func (h *harness) stored(t *testing.T) int {
	t.Helper()
	items, err := h.bookings.ListByGuest(context.Background(), guestEmail, domainbooking.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(items)
}

func TestCreateBookingPricesAndSnapshotsParties(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-06-01", "2025-06-04")

	if b.NumberOfNights != 3 || b.PricePerNight != 100 || b.TotalPrice != 300 {
		t.Fatalf("pricing = %d nights, %.2f/night, %.2f total", b.NumberOfNights, b.PricePerNight, b.TotalPrice)
	}
	if b.Status != string(domainbooking.StatusPending) || b.PaymentStatus != string(domainbooking.PaymentUnpaid) {
		t.Fatalf("status = %s/%s", b.Status, b.PaymentStatus)
	}
	if b.UserID != guestEmail || b.HostID != hostEmail || b.UserName != "Gail" {
		t.Fatalf("parties = %s/%s/%s", b.UserID, b.HostID, b.UserName)
	}
	if b.ID == "" {
		t.Fatal("booking id missing")
	}
	published := h.outbox.Published()
	if len(published) != 1 || published[0].Name != "booking.created" {
		t.Fatalf("events = %+v", published)
	}
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		cmd  bookingapp.CreateBookingCommand
		want error
	}{
		{"unauthenticated", createCmd("", "2025-06-01", "2025-06-02"), identity.ErrUnauthenticated},
		{"reversed dates", createCmd(guestEmail, "2025-06-04", "2025-06-01"), daterange.ErrInvalidRange},
		{"same day", createCmd(guestEmail, "2025-06-04", "2025-06-04"), daterange.ErrInvalidRange},
		{"garbage date", createCmd(guestEmail, "soon", "2025-06-04"), daterange.ErrInvalidDate},
		{"unknown user", createCmd("ghost@example.com", "2025-06-01", "2025-06-02"), domainuser.ErrNotFound},
		{"zero guests", func() bookingapp.CreateBookingCommand {
			c := createCmd(guestEmail, "2025-06-01", "2025-06-02")
			c.GuestCount = 0
			return c
		}(), domainbooking.ErrInvalidInput},
		{"bad type", func() bookingapp.CreateBookingCommand {
			c := createCmd(guestEmail, "2025-06-01", "2025-06-02")
			c.PropertyType = "castle"
			return c
		}(), domainproperty.ErrInvalidType},
		{"missing home", func() bookingapp.CreateBookingCommand {
			c := createCmd(guestEmail, "2025-06-01", "2025-06-02")
			c.PropertyID = "nope"
			return c
		}(), domainproperty.ErrHomeNotFound},
		{"missing service", func() bookingapp.CreateBookingCommand {
			c := createCmd(guestEmail, "2025-06-01", "2025-06-02")
			c.PropertyType = "service"
			return c
		}(), domainproperty.ErrServiceNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.create(tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if n := h.stored(t); n != 0 {
		t.Fatalf("stored %d bookings after rejected input", n)
	}
}

func TestCreateBookingUnknownHost(t *testing.T) {
	h := newHarness(t)
	h.addProperty(t, "orphan", domainproperty.TypeHome, "gone@example.com", 5000)
	cmd := createCmd(guestEmail, "2025-06-01", "2025-06-02")
	cmd.PropertyID = "orphan"
	if _, err := h.create(cmd); !errors.Is(err, domainuser.ErrHostNotFound) {
		t.Fatalf("err = %v, want host not found", err)
	}
}

func TestCreateBookingConflicts(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, "2025-06-10", "2025-06-15")

	for _, r := range [][2]string{
		{"2025-06-12", "2025-06-13"},
		{"2025-06-08", "2025-06-11"},
		{"2025-06-14", "2025-06-20"},
		{"2025-06-01", "2025-06-30"},
	} {
		if _, err := h.create(createCmd(guestEmail, r[0], r[1])); !errors.Is(err, domainbooking.ErrDateConflict) {
			t.Fatalf("%v: err = %v, want conflict", r, err)
		}
	}
	// Check-out day equals next check-in day.
	h.mustCreate(t, "2025-06-15", "2025-06-17")
	h.mustCreate(t, "2025-06-05", "2025-06-10")
}

func TestCancelledBookingReleasesDates(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-07-01", "2025-07-05")
	cancelled, err := h.cancel(guestEmail, b.ID, "plans changed")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != string(domainbooking.StatusCancelled) || cancelled.CancellationReason != "plans changed" || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	h.mustCreate(t, "2025-07-02", "2025-07-04")
}

func TestCompletedBookingReleasesDates(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-07-01", "2025-07-05")
	if _, err := h.confirm(hostEmail, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := h.complete(hostEmail, b.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.mustCreate(t, "2025-07-01", "2025-07-05")
}

func TestConcurrentCreatesAdmitOneBooking(t *testing.T) {
	h := newHarness(t)
	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.create(createCmd(guestEmail, "2025-08-01", "2025-08-04"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainbooking.ErrDateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
	if n := h.stored(t); n != 1 {
		t.Fatalf("stored %d bookings", n)
	}
}

func TestConfirmFlow(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-06-01", "2025-06-03")

	if _, err := h.confirm(guestEmail, b.ID); !errors.Is(err, domainbooking.ErrConfirmHostOnly) {
		t.Fatalf("guest confirm err = %v", err)
	}
	if _, err := h.confirm(otherEmail, b.ID); !errors.Is(err, domainbooking.ErrForbidden) {
		t.Fatalf("stranger confirm err = %v", err)
	}
	confirmed, err := h.confirm(hostEmail, b.ID)
	if err != nil {
		t.Fatalf("host confirm: %v", err)
	}
	if confirmed.Status != string(domainbooking.StatusConfirmed) || confirmed.PaymentStatus != string(domainbooking.PaymentPaid) || confirmed.ConfirmedAt == nil {
		t.Fatalf("confirmed = %+v", confirmed)
	}
	if _, err := h.confirm(hostEmail, b.ID); !errors.Is(err, domainbooking.ErrConfirmRequiresPending) {
		t.Fatalf("second confirm err = %v", err)
	}
	if _, err := h.confirm(hostEmail, "missing"); !errors.Is(err, domainbooking.ErrBookingNotFound) {
		t.Fatalf("missing confirm err = %v", err)
	}
}

func TestCancelFlow(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-06-01", "2025-06-03")

	if _, err := h.cancel(otherEmail, b.ID, ""); !errors.Is(err, domainbooking.ErrCancelDenied) {
		t.Fatalf("stranger cancel err = %v", err)
	}
	if _, err := h.confirm(hostEmail, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	cancelled, err := h.cancel(hostEmail, b.ID, "maintenance")
	if err != nil {
		t.Fatalf("host cancel of confirmed booking: %v", err)
	}
	if cancelled.PaymentStatus != string(domainbooking.PaymentRefunded) {
		t.Fatalf("payment = %s, want refunded", cancelled.PaymentStatus)
	}
	if _, err := h.cancel(guestEmail, b.ID, ""); !errors.Is(err, domainbooking.ErrCancelNotAllowed) {
		t.Fatalf("second cancel err = %v", err)
	}
}

func TestCompleteFlow(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-06-01", "2025-06-03")

	if _, err := h.complete(hostEmail, b.ID); !errors.Is(err, domainbooking.ErrCompleteRequiresConfirmed) {
		t.Fatalf("complete pending err = %v", err)
	}
	if _, err := h.confirm(hostEmail, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := h.complete(guestEmail, b.ID); !errors.Is(err, domainbooking.ErrCompleteHostOnly) {
		t.Fatalf("guest complete err = %v", err)
	}
	done, err := h.complete(hostEmail, b.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != string(domainbooking.StatusCompleted) {
		t.Fatalf("status = %s", done.Status)
	}
	if _, err := h.cancel(guestEmail, b.ID, ""); !errors.Is(err, domainbooking.ErrCancelNotAllowed) {
		t.Fatalf("cancel completed err = %v", err)
	}
	names := []string{}
	for _, rec := range h.outbox.Published() {
		names = append(names, rec.Name)
	}
	want := []string{"booking.created", "booking.confirmed", "booking.completed"}
	if len(names) != len(want) {
		t.Fatalf("events = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v", names)
		}
	}
}

func TestConcurrentConfirmsApplyOnce(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-09-01", "2025-09-03")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.confirm(hostEmail, b.ID)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		if !errors.Is(err, domainbooking.ErrInvalidState) {
			t.Fatalf("loser err = %v, want invalid state", err)
		}
	}
	if ok != 1 {
		t.Fatalf("confirmations applied = %d", ok)
	}
}

func TestGetBookingAccess(t *testing.T) {
	h := newHarness(t)
	b := h.mustCreate(t, "2025-06-01", "2025-06-03")
	ask := func(caller string) (*dto.Booking, error) {
		return queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](context.Background(), h.queries,
			bookingapp.GetBookingQuery{Caller: caller, BookingID: b.ID})
	}
	for _, caller := range []string{guestEmail, hostEmail, "HOST@example.com "} {
		got, err := ask(caller)
		if err != nil {
			t.Fatalf("%s: %v", caller, err)
		}
		if !reflect.DeepEqual(*got, *b) {
			t.Fatalf("%s read differs from create:\n got %+v\nwant %+v", caller, *got, *b)
		}
	}

	confirmed, err := h.confirm(hostEmail, b.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	got, err := ask(guestEmail)
	if err != nil {
		t.Fatalf("read after confirm: %v", err)
	}
	if !reflect.DeepEqual(*got, *confirmed) {
		t.Fatalf("read differs from confirm result:\n got %+v\nwant %+v", *got, *confirmed)
	}
	if _, err := ask(otherEmail); !errors.Is(err, domainbooking.ErrReadDenied) {
		t.Fatalf("stranger err = %v", err)
	}
	if _, err := ask(""); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("anonymous err = %v", err)
	}
}

func TestListBookingsByRoleAndStatus(t *testing.T) {
	h := newHarness(t)
	first := h.mustCreate(t, "2025-06-01", "2025-06-03")
	h.mustCreate(t, "2025-06-05", "2025-06-07")
	if _, err := h.confirm(hostEmail, first.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	list := func(q queries.Query) dto.BookingCollection {
		t.Helper()
		var (
			res dto.BookingCollection
			err error
		)
		switch q := q.(type) {
		case bookingapp.ListGuestBookingsQuery:
			res, err = queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](context.Background(), h.queries, q)
		case bookingapp.ListHostBookingsQuery:
			res, err = queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](context.Background(), h.queries, q)
		}
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		return res
	}

	if got := list(bookingapp.ListGuestBookingsQuery{Caller: guestEmail}); len(got.Items) != 2 {
		t.Fatalf("guest bookings = %d", len(got.Items))
	}
	if got := list(bookingapp.ListHostBookingsQuery{Caller: hostEmail, Status: "confirmed"}); len(got.Items) != 1 || got.Items[0].ID != first.ID {
		t.Fatalf("host confirmed = %+v", got.Items)
	}
	if got := list(bookingapp.ListHostBookingsQuery{Caller: hostEmail, Status: "all"}); len(got.Items) != 2 {
		t.Fatalf("host all = %d", len(got.Items))
	}
	if got := list(bookingapp.ListGuestBookingsQuery{Caller: otherEmail}); len(got.Items) != 0 {
		t.Fatalf("stranger sees %d bookings", len(got.Items))
	}
	_, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](context.Background(), h.queries,
		bookingapp.ListGuestBookingsQuery{Caller: guestEmail, Status: "archived"})
	if !errors.Is(err, domainbooking.ErrInvalidInput) {
		t.Fatalf("bad status err = %v", err)
	}
}

func TestCreateBookingIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	cmd := createCmd(guestEmail, "2025-10-01", "2025-10-03")
	cmd.IdempotencyKeyV = "retry-1"

	first, err := h.create(cmd)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := h.create(cmd)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay returned %s, want %s", second.ID, first.ID)
	}
	if n := h.stored(t); n != 1 {
		t.Fatalf("stored %d bookings", n)
	}
}

func TestCreateBookingIdempotencyDoesNotRememberFailures(t *testing.T) {
	h := newHarness(t)
	cmd := createCmd(guestEmail, "2025-10-01", "2025-10-03")
	cmd.PropertyID = "late-listing"
	cmd.IdempotencyKeyV = "retry-2"

	if _, err := h.create(cmd); !errors.Is(err, domainproperty.ErrHomeNotFound) {
		t.Fatalf("first err = %v", err)
	}
	h.addProperty(t, "late-listing", domainproperty.TypeHome, hostEmail, 2000)
	b, err := h.create(cmd)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if b.TotalPrice != 40 {
		t.Fatalf("total = %.2f", b.TotalPrice)
	}
}
