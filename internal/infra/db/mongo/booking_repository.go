package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainrange "stayhub/internal/domain/shared/daterange"
	"stayhub/internal/domain/shared/money"
)

const writeConflictCode = 112

// BookingRepository stores bookings in Mongo. Inserts serialise per property
// through a lock document written inside the same transaction, so two
// overlapping inserts cannot both commit.
type BookingRepository struct {
	col    *mongo.Collection
	locks  *mongo.Collection
	tracer trace.Tracer
}

func NewBookingRepository(db *mongo.Database, tracer trace.Tracer) *BookingRepository {
	if tracer == nil {
		tracer = otel.Tracer("stayhub/mongo")
	}
	return &BookingRepository{
		col:    db.Collection(bookingsCollection),
		locks:  db.Collection(locksCollection),
		tracer: tracer,
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	ctx, span := r.tracer.Start(ctx, "BookingStore.ByID")
	defer span.End()
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, traceErr(span, err)
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	ctx, span := r.tracer.Start(ctx, "BookingStore.ListByGuest")
	defer span.End()
	return r.find(ctx, span, "guest_id", identity, filter)
}

func (r *BookingRepository) ListByHost(ctx context.Context, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	ctx, span := r.tracer.Start(ctx, "BookingStore.ListByHost")
	defer span.End()
	return r.find(ctx, span, "host_id", identity, filter)
}

func (r *BookingRepository) find(ctx context.Context, span trace.Span, field, identity string, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	q := bson.M{field: strings.ToLower(strings.TrimSpace(identity))}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, traceErr(span, err)
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, traceErr(span, err)
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *BookingRepository) HasConflict(ctx context.Context, ref domainproperty.Ref, dr domainrange.DateRange) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "BookingStore.HasConflict")
	defer span.End()
	n, err := r.col.CountDocuments(ctx, overlapFilter(ref, dr), options.Count().SetLimit(1))
	if err != nil {
		return false, traceErr(span, err)
	}
	return n > 0, nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	ctx, span := r.tracer.Start(ctx, "BookingStore.Insert")
	defer span.End()
	if b == nil {
		return fmt.Errorf("%w: booking required", domainbooking.ErrInvalidInput)
	}
	if strings.TrimSpace(string(b.ID)) == "" {
		b.AssignID(domainbooking.BookingID(uuid.NewString()))
	}
	err := r.inTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.locks.UpdateOne(ctx,
			bson.M{"_id": b.Property.Key()},
			bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": time.Now().UTC()}},
			options.Update().SetUpsert(true),
		); err != nil {
			return err
		}
		if b.Status.HoldsDates() {
			n, err := r.col.CountDocuments(ctx, overlapFilter(b.Property, b.Range), options.Count().SetLimit(1))
			if err != nil {
				return err
			}
			if n > 0 {
				return domainbooking.ErrDateConflict
			}
		}
		doc := newBookingDocument(b)
		doc.Version = 1
		_, err := r.col.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: booking %s already exists", domainbooking.ErrInvalidInput, b.ID)
		}
		return traceErr(span, mapWriteErr(err))
	}
	b.Version = 1
	return nil
}

func (r *BookingRepository) Transition(ctx context.Context, b *domainbooking.Booking, from domainbooking.Status) error {
	ctx, span := r.tracer.Start(ctx, "BookingStore.Transition")
	defer span.End()
	if b == nil {
		return fmt.Errorf("%w: booking required", domainbooking.ErrInvalidInput)
	}
	if !from.CanTransitionTo(b.Status) {
		return fmt.Errorf("%w: %s to %s", domainbooking.ErrInvalidState, from, b.Status)
	}
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	filter := bson.M{"_id": doc.ID, "status": string(from), "version": b.Version}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return traceErr(span, transitionErr(b.ID, err))
	}
	if res.MatchedCount == 0 {
		return staleTransition(b.ID)
	}
	b.Version = doc.Version
	return nil
}

// inTransaction reuses the session already bound to ctx by a unit of work, or
// runs fn in a transaction of its own.
func (r *BookingRepository) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := r.col.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func overlapFilter(ref domainproperty.Ref, dr domainrange.DateRange) bson.M {
	return bson.M{
		"property_key": ref.Key(),
		"status":       bson.M{"$in": []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}},
		"check_in":     bson.M{"$lt": dr.CheckOut},
		"check_out":    bson.M{"$gt": dr.CheckIn},
	}
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && (se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError"))
}

func mapWriteErr(err error) error {
	if isWriteConflict(err) {
		return fmt.Errorf("%w: %v", domainbooking.ErrConcurrentUpdate, err)
	}
	return err
}

// transitionErr reports a conflicting concurrent transition the same way as
// a CAS miss: the other writer won and this caller must reload.
func transitionErr(id domainbooking.BookingID, err error) error {
	if isWriteConflict(err) {
		return staleTransition(id)
	}
	return err
}

func staleTransition(id domainbooking.BookingID) error {
	return fmt.Errorf("%w: booking %s changed concurrently", domainbooking.ErrInvalidState, id)
}

func traceErr(span trace.Span, err error) error {
	if err != nil && !errors.Is(err, domainbooking.ErrDateConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type bookingDocument struct {
	ID                 string     `bson:"_id"`
	GuestID            string     `bson:"guest_id"`
	GuestName          string     `bson:"guest_name"`
	HostID             string     `bson:"host_id"`
	HostName           string     `bson:"host_name"`
	PropertyID         string     `bson:"property_id"`
	PropertyType       string     `bson:"property_type"`
	PropertyKey        string     `bson:"property_key"`
	PropertyTitle      string     `bson:"property_title"`
	CheckIn            time.Time  `bson:"check_in"`
	CheckOut           time.Time  `bson:"check_out"`
	Nights             int        `bson:"nights"`
	PricePerNight      int64      `bson:"price_per_night"`
	TotalPrice         int64      `bson:"total_price"`
	Currency           string     `bson:"currency"`
	GuestCount         int        `bson:"guest_count"`
	SpecialRequests    string     `bson:"special_requests"`
	Status             string     `bson:"status"`
	PaymentStatus      string     `bson:"payment_status"`
	CancellationReason string     `bson:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	ConfirmedAt        *time.Time `bson:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `bson:"cancelled_at,omitempty"`
	UpdatedAt          time.Time  `bson:"updated_at"`
	Version            int64      `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:                 string(b.ID),
		GuestID:            b.Guest.Identity,
		GuestName:          b.Guest.DisplayName,
		HostID:             b.Host.Identity,
		HostName:           b.Host.DisplayName,
		PropertyID:         string(b.Property.ID),
		PropertyType:       string(b.Property.Type),
		PropertyKey:        b.Property.Key(),
		PropertyTitle:      b.PropertyTitle,
		CheckIn:            b.Range.CheckIn,
		CheckOut:           b.Range.CheckOut,
		Nights:             b.Nights,
		PricePerNight:      b.PricePerNight.Amount,
		TotalPrice:         b.TotalPrice.Amount,
		Currency:           b.TotalPrice.Currency,
		GuestCount:         b.GuestCount,
		SpecialRequests:    b.SpecialRequests,
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:                 domainbooking.BookingID(d.ID),
		Guest:              domainbooking.Party{Identity: d.GuestID, DisplayName: d.GuestName},
		Host:               domainbooking.Party{Identity: d.HostID, DisplayName: d.HostName},
		Property:           domainproperty.Ref{ID: domainproperty.ID(d.PropertyID), Type: domainproperty.Type(d.PropertyType)},
		PropertyTitle:      d.PropertyTitle,
		Range:              domainrange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Nights:             d.Nights,
		PricePerNight:      money.Money{Amount: d.PricePerNight, Currency: d.Currency},
		TotalPrice:         money.Money{Amount: d.TotalPrice, Currency: d.Currency},
		GuestCount:         d.GuestCount,
		SpecialRequests:    d.SpecialRequests,
		Status:             domainbooking.Status(d.Status),
		PaymentStatus:      domainbooking.PaymentStatus(d.PaymentStatus),
		CancellationReason: d.CancellationReason,
		CreatedAt:          d.CreatedAt.UTC(),
		ConfirmedAt:        utcPtr(d.ConfirmedAt),
		CancelledAt:        utcPtr(d.CancelledAt),
		UpdatedAt:          d.UpdatedAt.UTC(),
		Version:            d.Version,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
