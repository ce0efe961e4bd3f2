package dto

import (
	"time"

	domainbooking "stayhub/internal/domain/booking"
)

// Booking is the wire shape returned by every booking endpoint.
type Booking struct {
	ID                 string     `json:"_id"`
	UserID             string     `json:"userId"`
	UserName           string     `json:"userName,omitempty"`
	HostID             string     `json:"hostId"`
	HostName           string     `json:"hostName,omitempty"`
	PropertyID         string     `json:"propertyId"`
	PropertyType       string     `json:"propertyType"`
	PropertyTitle      string     `json:"propertyTitle,omitempty"`
	CheckInDate        time.Time  `json:"checkInDate"`
	CheckOutDate       time.Time  `json:"checkOutDate"`
	NumberOfNights     int        `json:"numberOfNights"`
	PricePerNight      float64    `json:"pricePerNight"`
	TotalPrice         float64    `json:"totalPrice"`
	Currency           string     `json:"currency"`
	GuestCount         int        `json:"guestCount"`
	SpecialRequests    string     `json:"specialRequests,omitempty"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"paymentStatus"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	return Booking{
		ID:                 string(b.ID),
		UserID:             b.Guest.Identity,
		UserName:           b.Guest.DisplayName,
		HostID:             b.Host.Identity,
		HostName:           b.Host.DisplayName,
		PropertyID:         string(b.Property.ID),
		PropertyType:       string(b.Property.Type),
		PropertyTitle:      b.PropertyTitle,
		CheckInDate:        b.Range.CheckIn,
		CheckOutDate:       b.Range.CheckOut,
		NumberOfNights:     b.Nights,
		PricePerNight:      b.PricePerNight.Major(),
		TotalPrice:         b.TotalPrice.Major(),
		Currency:           b.TotalPrice.Currency,
		GuestCount:         b.GuestCount,
		SpecialRequests:    b.SpecialRequests,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
	}
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := make([]Booking, 0, len(items))
	for _, b := range items {
		out = append(out, MapBooking(b))
	}
	return BookingCollection{Items: out}
}
