package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/money"
	domainuser "stayhub/internal/domain/user"
)

type propertyRow struct {
	ID            string `gorm:"primaryKey"`
	Type          string `gorm:"primaryKey"`
	Title         string
	PricePerNight int64
	Currency      string
	Capacity      int
	HostID        string
	HostName      string
}

func (propertyRow) TableName() string { return "properties" }

type PropertyDirectory struct {
	db *gorm.DB
}

func NewPropertyDirectory(db *gorm.DB) *PropertyDirectory {
	return &PropertyDirectory{db: db}
}

func (d *PropertyDirectory) ByRef(ctx context.Context, ref domainproperty.Ref) (*domainproperty.Property, error) {
	var row propertyRow
	err := conn(ctx, d.db).Where("type = ? AND id = ?", string(ref.Type), string(ref.ID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainproperty.NotFound(ref.Type)
		}
		return nil, err
	}
	return &domainproperty.Property{
		Ref:           ref,
		Title:         row.Title,
		PricePerNight: money.Money{Amount: row.PricePerNight, Currency: row.Currency},
		Capacity:      row.Capacity,
		HostIdentity:  domainuser.NormalizeEmail(row.HostID),
		HostName:      row.HostName,
	}, nil
}

// Save upserts a listing snapshot; used when loading fixtures.
func (d *PropertyDirectory) Save(ctx context.Context, p *domainproperty.Property) error {
	if p == nil || strings.TrimSpace(string(p.ID)) == "" {
		return domainproperty.ErrIDRequired
	}
	row := propertyRow{
		ID:            string(p.ID),
		Type:          string(p.Type),
		Title:         p.Title,
		PricePerNight: p.PricePerNight.Amount,
		Currency:      p.PricePerNight.Currency,
		Capacity:      p.Capacity,
		HostID:        domainuser.NormalizeEmail(p.HostIdentity),
		HostName:      p.HostName,
	}
	return conn(ctx, d.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

type userRow struct {
	Email string `gorm:"primaryKey"`
	Name  string
}

func (userRow) TableName() string { return "users" }

type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) ByEmail(ctx context.Context, email string) (*domainuser.Profile, error) {
	key := domainuser.NormalizeEmail(email)
	if key == "" {
		return nil, domainuser.ErrEmailRequired
	}
	var row userRow
	if err := conn(ctx, d.db).Where("email = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return domainuser.NewProfile(row.Email, row.Name)
}

func (d *UserDirectory) Save(ctx context.Context, p *domainuser.Profile) error {
	if p == nil {
		return domainuser.ErrEmailRequired
	}
	profile, err := domainuser.NewProfile(p.Email, p.Name)
	if err != nil {
		return err
	}
	row := userRow{Email: profile.Email, Name: profile.Name}
	return conn(ctx, d.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

var (
	_ domainproperty.Directory = (*PropertyDirectory)(nil)
	_ domainuser.Directory     = (*UserDirectory)(nil)
)
