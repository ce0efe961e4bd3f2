package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/money"
	domainuser "stayhub/internal/domain/user"
)

// PropertyDirectory reads homes and services from their listing collections.
type PropertyDirectory struct {
	homes    *mongo.Collection
	services *mongo.Collection
	currency string
}

func NewPropertyDirectory(db *mongo.Database, currency string) *PropertyDirectory {
	return &PropertyDirectory{
		homes:    db.Collection(homesCollection),
		services: db.Collection(servicesCollection),
		currency: currency,
	}
}

type listingDocument struct {
	Title    string  `bson:"title"`
	Price    float64 `bson:"price"`
	Guests   int     `bson:"guests"`
	HostID   string  `bson:"hostId"`
	HostName string  `bson:"hostName"`
}

func (d *PropertyDirectory) ByRef(ctx context.Context, ref domainproperty.Ref) (*domainproperty.Property, error) {
	col := d.homes
	if ref.Type == domainproperty.TypeService {
		col = d.services
	}
	var doc listingDocument
	if err := col.FindOne(ctx, bson.M{"_id": documentID(string(ref.ID))}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainproperty.NotFound(ref.Type)
		}
		return nil, err
	}
	price, err := money.FromMajor(doc.Price, d.currency)
	if err != nil {
		return nil, err
	}
	return &domainproperty.Property{
		Ref:           ref,
		Title:         doc.Title,
		PricePerNight: price,
		Capacity:      doc.Guests,
		HostIdentity:  domainuser.NormalizeEmail(doc.HostID),
		HostName:      doc.HostName,
	}, nil
}

// UserDirectory reads registered users; the collection is owned by the
// account service and only queried here.
type UserDirectory struct {
	col *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{col: db.Collection(usersCollection)}
}

type userDocument struct {
	Email string `bson:"regEmail"`
	Name  string `bson:"regName"`
}

func (d *UserDirectory) ByEmail(ctx context.Context, email string) (*domainuser.Profile, error) {
	key := domainuser.NormalizeEmail(email)
	if key == "" {
		return nil, domainuser.ErrEmailRequired
	}
	filter, opts := userLookup(key)
	var doc userDocument
	if err := d.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return domainuser.NewProfile(doc.Email, doc.Name)
}

// caseInsensitive compares strings ignoring case (ICU strength 2). The
// account service stores regEmail as typed at sign-up.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

func userLookup(email string) (bson.M, *options.FindOneOptions) {
	return bson.M{"regEmail": email}, options.FindOne().SetCollation(caseInsensitive)
}

// documentID accepts both ObjectID hex strings and plain string keys.
func documentID(raw string) any {
	raw = strings.TrimSpace(raw)
	if oid, err := primitive.ObjectIDFromHex(raw); err == nil {
		return oid
	}
	return raw
}

var (
	_ domainproperty.Directory = (*PropertyDirectory)(nil)
	_ domainuser.Directory     = (*UserDirectory)(nil)
)
