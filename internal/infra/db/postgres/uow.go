package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainuser "stayhub/internal/domain/user"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory opens one database transaction per unit of work.
type Factory struct {
	DB *gorm.DB

	BookingRepo domainbooking.Repository
	PropertyDir domainproperty.Directory
	UserDir     domainuser.Directory
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.BookingRepo == nil || f.PropertyDir == nil || f.UserDir == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx, booking: f.BookingRepo, properties: f.PropertyDir, users: f.UserDir}, nil
}

type Unit struct {
	tx *gorm.DB

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
	return mapTxErr(u.tx.Commit().Error)
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// InjectContext binds the transaction so repositories and the outbox share it.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}
