package memory

import (
	"context"
	"errors"

	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainuser "stayhub/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	BookingRepo domainbooking.Repository
	PropertyDir domainproperty.Directory
	UserDir     domainuser.Directory
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight boundary. Atomicity comes from the repositories
// themselves; commit and rollback are no-ops.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.BookingRepo == nil || f.PropertyDir == nil || f.UserDir == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{booking: f.BookingRepo, properties: f.PropertyDir, users: f.UserDir}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	booking    domainbooking.Repository
	properties domainproperty.Directory
	users      domainuser.Directory
}

func (u *Unit) Booking() domainbooking.Repository {
	return u.booking
}

func (u *Unit) Properties() domainproperty.Directory {
	return u.properties
}

func (u *Unit) Users() domainuser.Directory {
	return u.users
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
