package booking

import (
	"context"
	"time"

	"stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/daterange"
)

// ConflictFinder reports whether any date-holding booking of the property
// overlaps the half-open range.
type ConflictFinder interface {
	HasConflict(ctx context.Context, ref property.Ref, dr daterange.DateRange) (bool, error)
}

// AvailabilityChecker answers availability questions for raw date bounds.
type AvailabilityChecker struct {
	Bookings ConflictFinder
}

func NewAvailabilityChecker(f ConflictFinder) AvailabilityChecker {
	return AvailabilityChecker{Bookings: f}
}

func (c AvailabilityChecker) HasConflict(ctx context.Context, ref property.Ref, checkIn, checkOut time.Time) (bool, error) {
	dr, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return c.Bookings.HasConflict(ctx, ref, dr)
}

// Blocks reports whether existing holds dates that overlap dr on the same property.
// Completed and cancelled bookings never block.
func Blocks(existing *Booking, ref property.Ref, dr daterange.DateRange) bool {
	if existing == nil || existing.Property != ref {
		return false
	}
	return existing.Status.HoldsDates() && existing.Range.Overlaps(dr)
}
