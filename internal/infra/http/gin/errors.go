package ginserver

import (
	"errors"
	"net/http"
	"strings"

	"stayhub/internal/app/identity"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/daterange"
	domainuser "stayhub/internal/domain/user"
)

const internalErrorMessage = "Internal Server Error"

type errorRule struct {
	target  error
	status  int
	message string
}

// errorRules is ordered: specific variants come before the sentinels they wrap.
var errorRules = []errorRule{
	{identity.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized"},

	{domainbooking.ErrConfirmHostOnly, http.StatusForbidden, "Only host can confirm booking"},
	{domainbooking.ErrCompleteHostOnly, http.StatusForbidden, "Only host can mark as completed"},
	{domainbooking.ErrCancelDenied, http.StatusForbidden, "You don't have permission to cancel this booking"},
	{domainbooking.ErrReadDenied, http.StatusForbidden, "You don't have access to this booking"},
	{domainbooking.ErrForbidden, http.StatusForbidden, "Forbidden"},

	{domainbooking.ErrBookingNotFound, http.StatusNotFound, "Booking not found"},
	{domainproperty.ErrHomeNotFound, http.StatusNotFound, "Home not found"},
	{domainproperty.ErrServiceNotFound, http.StatusNotFound, "Service not found"},
	{domainproperty.ErrNotFound, http.StatusNotFound, "Property not found"},
	{domainuser.ErrHostNotFound, http.StatusNotFound, "Host not found"},
	{domainuser.ErrNotFound, http.StatusNotFound, "User not found"},

	{domainproperty.ErrInvalidType, http.StatusBadRequest, "Invalid property type"},
	{domainproperty.ErrIDRequired, http.StatusBadRequest, "Property ID is required"},
	{daterange.ErrInvalidRange, http.StatusBadRequest, "Check-out date must be after check-in date"},
	{daterange.ErrInvalidDate, http.StatusBadRequest, "Invalid check-in or check-out date"},

	{domainbooking.ErrDateConflict, http.StatusConflict, "Property is not available for selected dates"},
	{domainbooking.ErrConcurrentUpdate, http.StatusConflict, "Booking was modified concurrently, please retry"},

	{domainbooking.ErrConfirmRequiresPending, http.StatusBadRequest, "Can only confirm pending bookings"},
	{domainbooking.ErrCancelNotAllowed, http.StatusBadRequest, "Cannot cancel this booking"},
	{domainbooking.ErrCompleteRequiresConfirmed, http.StatusBadRequest, "Can only complete confirmed bookings"},
	{domainbooking.ErrInvalidState, http.StatusBadRequest, "Booking status has changed, please reload"},
}

// classify maps an application error onto a status code and a caller-safe message.
func classify(err error) (int, string) {
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, rule.message
		}
	}
	if errors.Is(err, domainbooking.ErrInvalidInput) {
		return http.StatusBadRequest, inputMessage(err)
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// inputMessage keeps the validation detail and drops the sentinel prefix.
func inputMessage(err error) string {
	msg := err.Error()
	prefix := domainbooking.ErrInvalidInput.Error() + ": "
	if idx := strings.Index(msg, prefix); idx >= 0 {
		msg = msg[idx+len(prefix):]
	}
	if msg == "" || msg == domainbooking.ErrInvalidInput.Error() {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
