package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stayhub/internal/app/commands"
	"stayhub/internal/app/dto"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	PropertyID      string `json:"propertyId"`
	PropertyType    string `json:"propertyType"`
	CheckInDate     string `json:"checkInDate"`
	CheckOutDate    string `json:"checkOutDate"`
	GuestCount      int    `json:"guestCount"`
	SpecialRequests string `json:"specialRequests"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		CommandID:       generateCommandID(),
		Caller:          p.Identity,
		PropertyID:      req.PropertyID,
		PropertyType:    req.PropertyType,
		CheckIn:         req.CheckInDate,
		CheckOut:        req.CheckOutDate,
		GuestCount:      req.GuestCount,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking created successfully!", "booking": result})
}

func (h BookingHandler) MyBookings(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	q := bookingapp.ListGuestBookingsQuery{Caller: p.Identity, Status: c.Query("status")}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": nonNil(result.Items)})
}

func (h BookingHandler) HostBookings(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	q := bookingapp.ListHostBookingsQuery{Caller: p.Identity, Status: c.Query("status")}
	result, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": nonNil(result.Items)})
}

func (h BookingHandler) Get(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{Caller: p.Identity, BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": result})
}

func (h BookingHandler) Confirm(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	cmd := bookingapp.ConfirmBookingCommand{Caller: p.Identity, BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking confirmed successfully!", "booking": result})
}

func (h BookingHandler) Cancel(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	// The body is optional; an absent reason is stored as empty.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	cmd := bookingapp.CancelBookingCommand{
		Caller:    p.Identity,
		BookingID: strings.TrimSpace(c.Param("id")),
		Reason:    strings.TrimSpace(req.Reason),
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking cancelled successfully!", "booking": result})
}

func (h BookingHandler) Complete(c *gin.Context) {
	p, ok := requireCaller(c)
	if !ok {
		return
	}
	cmd := bookingapp.CompleteBookingCommand{Caller: p.Identity, BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := commands.Dispatch[bookingapp.CompleteBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking marked as completed!", "booking": result})
}

func (h BookingHandler) handleError(c *gin.Context, err error) {
	status, message := classify(err)
	if h.Logger != nil {
		if status >= http.StatusInternalServerError {
			h.Logger.Error("booking request failed", "status", status, "error", err, "path", c.FullPath())
		} else {
			h.Logger.Debug("booking request rejected", "status", status, "error", err, "path", c.FullPath())
		}
	}
	c.JSON(status, gin.H{"success": false, "message": message})
}

func nonNil(items []dto.Booking) []dto.Booking {
	if items == nil {
		return []dto.Booking{}
	}
	return items
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ BookingHTTP = BookingHandler{}
