package booking

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound  = errors.New("booking: not found")
	ErrInvalidInput     = errors.New("booking: invalid input")
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrForbidden        = errors.New("booking: access denied")
	ErrDateConflict     = errors.New("booking: property not available for selected dates")
	ErrConcurrentUpdate = errors.New("booking: concurrent update detected")
)

var (
	ErrConfirmRequiresPending    = fmt.Errorf("%w: can only confirm pending bookings", ErrInvalidState)
	ErrCancelNotAllowed          = fmt.Errorf("%w: cannot cancel this booking", ErrInvalidState)
	ErrCompleteRequiresConfirmed = fmt.Errorf("%w: can only complete confirmed bookings", ErrInvalidState)
)

var (
	ErrConfirmHostOnly  = fmt.Errorf("%w: only host can confirm booking", ErrForbidden)
	ErrCompleteHostOnly = fmt.Errorf("%w: only host can mark as completed", ErrForbidden)
	ErrCancelDenied     = fmt.Errorf("%w: no permission to cancel this booking", ErrForbidden)
	ErrReadDenied       = fmt.Errorf("%w: no access to this booking", ErrForbidden)
)
