package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayhub/internal/app/commands"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/identity"
	"stayhub/internal/app/middleware"
	"stayhub/internal/app/queries"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/money"
	domainuser "stayhub/internal/domain/user"
	"stayhub/internal/infra/obs"
	"stayhub/internal/infra/security"
	"stayhub/internal/infra/storage/memory"
	"stayhub/internal/infra/validation"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	tokens *security.TokenVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	bookings := memory.NewBookingRepository()
	properties := memory.NewPropertyDirectory()
	users := memory.NewUserDirectory()
	box := memory.NewOutbox()
	for _, email := range []string{"guest@example.com", "host@example.com", "other@example.com"} {
		p, _ := domainuser.NewProfile(email, email)
		if err := users.Save(ctx, p); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}
	err := properties.Save(ctx, &domainproperty.Property{
		Ref:           domainproperty.Ref{ID: "home-1", Type: domainproperty.TypeHome},
		Title:         "Loft",
		PricePerNight: money.Must(12500, "USD"),
		HostIdentity:  "host@example.com",
	})
	if err != nil {
		t.Fatalf("save property: %v", err)
	}
	factory := memory.Factory{BookingRepo: bookings, PropertyDir: properties, UserDir: users}

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler(cmdBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{UoWFactory: factory, Outbox: box})
	commands.RegisterHandler(cmdBus, bookingapp.ConfirmBookingCommand{}.Key(), bookingapp.NewConfirmBookingHandler(factory, domainbooking.DefaultPolicy, box, nil))
	commands.RegisterHandler(cmdBus, bookingapp.CancelBookingCommand{}.Key(), bookingapp.NewCancelBookingHandler(factory, domainbooking.DefaultPolicy, box, nil))
	commands.RegisterHandler(cmdBus, bookingapp.CompleteBookingCommand{}.Key(), bookingapp.NewCompleteBookingHandler(factory, domainbooking.DefaultPolicy, box, nil))
	qBus := queries.NewInMemoryBus()
	queries.RegisterHandler(qBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: factory, Policy: domainbooking.DefaultPolicy})
	queries.RegisterHandler(qBus, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{UoWFactory: factory})
	queries.RegisterHandler(qBus, bookingapp.ListHostBookingsQuery{}.Key(), &bookingapp.ListHostBookingsHandler{UoWFactory: factory})

	verifier := security.NewTokenVerifier(testSecret)
	handlers := Handlers{
		Booking: BookingHandler{
			Commands: middleware.ChainCommands(cmdBus,
				middleware.Validation(validation.New()),
				middleware.Authorization(identity.Authorizer{}),
				middleware.Transaction(factory, nil),
				middleware.OutboxFlush(box),
			),
			Queries: middleware.ChainQueries(qBus, middleware.QueryAuthorization(identity.Authorizer{})),
		},
		AuthMiddleware: AuthMiddleware{Verifier: verifier}.Handle,
	}
	router := NewRouter(nil, obs.Middleware{}, obs.HealthHandlers{}, handlers)
	return &testServer{router: router, tokens: verifier}
}

type envelope struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Booking  map[string]any   `json:"booking"`
	Bookings []map[string]any `json:"bookings"`
}

func (s *testServer) do(t *testing.T, method, path, caller string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		token, err := s.tokens.Issue(caller, caller, time.Hour)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, env
}

func createBody(checkIn, checkOut string) map[string]any {
	return map[string]any{
		"propertyId":   "home-1",
		"propertyType": "home",
		"checkInDate":  checkIn,
		"checkOutDate": checkOut,
		"guestCount":   2,
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/bookings/create-booking", "guest@example.com", createBody("2025-06-01", "2025-06-03"))
	if code != http.StatusOK || !env.Success || env.Message != "Booking created successfully!" {
		t.Fatalf("create = %d %+v", code, env)
	}
	if env.Booking["totalPrice"] != 250.0 || env.Booking["status"] != "pending" {
		t.Fatalf("booking = %v", env.Booking)
	}
	id, _ := env.Booking["_id"].(string)
	created := env.Booking

	code, env = s.do(t, http.MethodGet, "/bookings/booking/"+id, "guest@example.com", nil)
	if code != http.StatusOK || !reflect.DeepEqual(env.Booking, created) {
		t.Fatalf("get after create = %d\n got %v\nwant %v", code, env.Booking, created)
	}

	code, env = s.do(t, http.MethodPost, "/bookings/create-booking", "other@example.com", createBody("2025-06-02", "2025-06-05"))
	if code != http.StatusConflict || env.Message != "Property is not available for selected dates" {
		t.Fatalf("overlap = %d %+v", code, env)
	}

	code, env = s.do(t, http.MethodPut, "/bookings/confirm-booking/"+id, "guest@example.com", nil)
	if code != http.StatusForbidden || env.Message != "Only host can confirm booking" {
		t.Fatalf("guest confirm = %d %+v", code, env)
	}
	code, env = s.do(t, http.MethodPut, "/bookings/confirm-booking/"+id, "host@example.com", nil)
	if code != http.StatusOK || env.Message != "Booking confirmed successfully!" || env.Booking["paymentStatus"] != "paid" {
		t.Fatalf("host confirm = %d %+v", code, env)
	}
	code, env = s.do(t, http.MethodPut, "/bookings/confirm-booking/"+id, "host@example.com", nil)
	if code != http.StatusBadRequest || env.Message != "Can only confirm pending bookings" {
		t.Fatalf("re-confirm = %d %+v", code, env)
	}

	code, env = s.do(t, http.MethodGet, "/bookings/host-bookings?status=confirmed", "host@example.com", nil)
	if code != http.StatusOK || len(env.Bookings) != 1 {
		t.Fatalf("host list = %d %+v", code, env)
	}
	code, env = s.do(t, http.MethodGet, "/bookings/booking/"+id, "other@example.com", nil)
	if code != http.StatusForbidden || env.Message != "You don't have access to this booking" {
		t.Fatalf("stranger get = %d %+v", code, env)
	}

	code, env = s.do(t, http.MethodPut, "/bookings/complete-booking/"+id, "host@example.com", nil)
	if code != http.StatusOK || env.Message != "Booking marked as completed!" {
		t.Fatalf("complete = %d %+v", code, env)
	}
	code, env = s.do(t, http.MethodPut, "/bookings/cancel-booking/"+id, "guest@example.com", map[string]string{"reason": "late"})
	if code != http.StatusBadRequest || env.Message != "Cannot cancel this booking" {
		t.Fatalf("cancel completed = %d %+v", code, env)
	}
}

func TestCancelWithoutBodyOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(t, http.MethodPost, "/bookings/create-booking", "guest@example.com", createBody("2025-06-01", "2025-06-03"))
	id, _ := env.Booking["_id"].(string)

	code, env := s.do(t, http.MethodPut, "/bookings/cancel-booking/"+id, "guest@example.com", nil)
	if code != http.StatusOK || env.Booking["status"] != "cancelled" {
		t.Fatalf("cancel = %d %+v", code, env)
	}
	code, env = s.do(t, http.MethodGet, "/bookings/my-bookings", "guest@example.com", nil)
	if code != http.StatusOK || len(env.Bookings) != 1 {
		t.Fatalf("my bookings = %d %+v", code, env)
	}
}

func TestAuthenticationOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/bookings/my-bookings", "", nil)
	if code != http.StatusUnauthorized || env.Message != "Unauthorized" {
		t.Fatalf("anonymous = %d %+v", code, env)
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings/my-bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", rec.Code)
	}

	code, env = s.do(t, http.MethodGet, "/bookings/my-bookings", "guest@example.com", nil)
	if code != http.StatusOK || env.Bookings == nil {
		t.Fatalf("empty list = %d %+v", code, env)
	}
}

func TestCreateValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		body    map[string]any
		status  int
		message string
	}{
		{createBody("2025-06-03", "2025-06-01"), http.StatusBadRequest, "Check-out date must be after check-in date"},
		{func() map[string]any {
			b := createBody("2025-06-01", "2025-06-03")
			b["propertyType"] = "boat"
			return b
		}(), http.StatusBadRequest, "Invalid property type"},
		{func() map[string]any { b := createBody("2025-06-01", "2025-06-03"); b["propertyId"] = "nope"; return b }(), http.StatusNotFound, "Home not found"},
		{func() map[string]any {
			b := createBody("2025-06-01", "2025-06-03")
			b["propertyType"] = "service"
			return b
		}(), http.StatusNotFound, "Service not found"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/bookings/create-booking", "guest@example.com", tc.body)
			if code != tc.status || env.Message != tc.message || env.Success {
				t.Fatalf("got %d %+v, want %d %q", code, env, tc.status, tc.message)
			}
		})
	}
	code, env := s.do(t, http.MethodPost, "/bookings/create-booking", "guest@example.com", map[string]any{"propertyType": "home"})
	if code != http.StatusBadRequest || env.Success {
		t.Fatalf("missing fields = %d %+v", code, env)
	}
}

func TestClassifyErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{domainbooking.ErrBookingNotFound, http.StatusNotFound, "Booking not found"},
		{domainuser.ErrHostNotFound, http.StatusNotFound, "Host not found"},
		{domainuser.ErrNotFound, http.StatusNotFound, "User not found"},
		{domainbooking.ErrCancelDenied, http.StatusForbidden, "You don't have permission to cancel this booking"},
		{domainbooking.ErrCompleteHostOnly, http.StatusForbidden, "Only host can mark as completed"},
		{domainbooking.ErrCompleteRequiresConfirmed, http.StatusBadRequest, "Can only complete confirmed bookings"},
		{fmt.Errorf("wrap: %w", domainbooking.ErrConcurrentUpdate), http.StatusConflict, "Booking was modified concurrently, please retry"},
		{fmt.Errorf("%w: booking b-1 is confirmed", domainbooking.ErrInvalidState), http.StatusBadRequest, "Booking status has changed, please reload"},
		{fmt.Errorf("%w: guestCount must be at least 1", domainbooking.ErrInvalidInput), http.StatusBadRequest, "GuestCount must be at least 1"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		status, message := classify(tc.err)
		if status != tc.status || message != tc.message {
			t.Errorf("classify(%v) = %d %q, want %d %q", tc.err, status, message, tc.status, tc.message)
		}
	}
}
