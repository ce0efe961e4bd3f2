package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/daterange"
	domainuser "stayhub/internal/domain/user"
)

// BookingRepository keeps bookings in memory. A single mutex serialises the
// conflict check with the insert so two overlapping requests cannot both succeed.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
	newID func() string
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items: make(map[domainbooking.BookingID]*domainbooking.Booking),
		newID: uuid.NewString,
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	id := domainuser.NormalizeEmail(identity)
	return r.list(ctx, func(b *domainbooking.Booking) bool {
		return b.Guest.Identity == id && filter.Matches(b)
	})
}

func (r *BookingRepository) ListByHost(ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	id := domainuser.NormalizeEmail(identity)
	return r.list(ctx, func(b *domainbooking.Booking) bool {
		return b.Host.Identity == id && filter.Matches(b)
	})
}

func (r *BookingRepository) list(ctx context.Context, keep func(*domainbooking.Booking) bool) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (r *BookingRepository) HasConflict(ctx context.Context, ref domainproperty.Ref, dr daterange.DateRange) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conflictLocked(ref, dr), nil
}

func (r *BookingRepository) conflictLocked(ref domainproperty.Ref, dr daterange.DateRange) bool {
	for _, existing := range r.items {
		if domainbooking.Blocks(existing, ref, dr) {
			return true
		}
	}
	return false
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	if b == nil {
		return fmt.Errorf("%w: booking required", domainbooking.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(string(b.ID)) == "" {
		b.AssignID(domainbooking.BookingID(r.newID()))
	}
	if _, exists := r.items[b.ID]; exists {
		return fmt.Errorf("%w: booking %s already exists", domainbooking.ErrInvalidInput, b.ID)
	}
	if b.Status.HoldsDates() && r.conflictLocked(b.Property, b.Range) {
		return domainbooking.ErrDateConflict
	}
	b.Version = 1
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) Transition(ctx context.Context, b *domainbooking.Booking, from domainbooking.Status) error {
	if b == nil {
		return fmt.Errorf("%w: booking required", domainbooking.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if current.Status != from || current.Version != b.Version || !from.CanTransitionTo(b.Status) {
		return fmt.Errorf("%w: booking %s is %s", domainbooking.ErrInvalidState, b.ID, current.Status)
	}
	b.Version++
	r.items[b.ID] = b.Clone()
	return nil
}

// PropertyDirectory serves homes and services from memory.
type PropertyDirectory struct {
	mu    sync.RWMutex
	items map[domainproperty.Ref]*domainproperty.Property
}

func NewPropertyDirectory() *PropertyDirectory {
	return &PropertyDirectory{items: make(map[domainproperty.Ref]*domainproperty.Property)}
}

func (d *PropertyDirectory) ByRef(ctx context.Context, ref domainproperty.Ref) (*domainproperty.Property, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.items[ref]
	if !ok {
		return nil, domainproperty.NotFound(ref.Type)
	}
	cp := *p
	return &cp, nil
}

func (d *PropertyDirectory) Save(ctx context.Context, p *domainproperty.Property) error {
	if p == nil || strings.TrimSpace(string(p.ID)) == "" {
		return domainproperty.ErrIDRequired
	}
	if _, err := domainproperty.ParseType(string(p.Type)); err != nil {
		return err
	}
	cp := *p
	cp.HostIdentity = domainuser.NormalizeEmail(cp.HostIdentity)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[cp.Ref] = &cp
	return nil
}

// UserDirectory stores profiles keyed by normalised email.
type UserDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]*domainuser.Profile
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{byEmail: make(map[string]*domainuser.Profile)}
}

func (d *UserDirectory) ByEmail(ctx context.Context, email string) (*domainuser.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *UserDirectory) Save(ctx context.Context, p *domainuser.Profile) error {
	if p == nil {
		return domainuser.ErrEmailRequired
	}
	profile, err := domainuser.NewProfile(p.Email, p.Name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byEmail[profile.Email] = profile
	return nil
}

var (
	_ domainbooking.Repository = (*BookingRepository)(nil)
	_ domainproperty.Directory = (*PropertyDirectory)(nil)
	_ domainuser.Directory     = (*UserDirectory)(nil)
)
