package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/money"
)

const propertyKeyPrefix = "stayhub:property:"

// CachedPropertyDirectory is a read-through cache in front of a property
// directory. Cache failures fall back to the source.
type CachedPropertyDirectory struct {
	next   domainproperty.Directory
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedPropertyDirectory(next domainproperty.Directory, client Client, ttl time.Duration, logger *slog.Logger) *CachedPropertyDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedPropertyDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

type cachedProperty struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	PriceMinor   int64  `json:"priceMinor"`
	Currency     string `json:"currency"`
	Capacity     int    `json:"capacity"`
	HostIdentity string `json:"hostId"`
	HostName     string `json:"hostName"`
}

func (d *CachedPropertyDirectory) ByRef(ctx context.Context, ref domainproperty.Ref) (*domainproperty.Property, error) {
	key := propertyKeyPrefix + ref.Key()
	raw, err := d.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c cachedProperty
		if jsonErr := json.Unmarshal(raw, &c); jsonErr == nil {
			return c.toProperty(), nil
		}
	case !errors.Is(err, redis.Nil):
		d.warn("property cache read failed", err, ref)
	}

	p, err := d.next.ByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(fromProperty(p))
	if err == nil {
		err = d.client.Set(ctx, key, payload, d.ttl).Err()
	}
	if err != nil {
		d.warn("property cache write failed", err, ref)
	}
	return p, nil
}

// Invalidate drops a cached listing, e.g. after the owning service edits it.
func (d *CachedPropertyDirectory) Invalidate(ctx context.Context, ref domainproperty.Ref) error {
	return d.client.Del(ctx, propertyKeyPrefix+ref.Key()).Err()
}

func (d *CachedPropertyDirectory) warn(msg string, err error, ref domainproperty.Ref) {
	if d.logger != nil {
		d.logger.Warn(msg, "err", err, "property", ref.Key())
	}
}

func fromProperty(p *domainproperty.Property) cachedProperty {
	return cachedProperty{
		ID:           string(p.ID),
		Type:         string(p.Type),
		Title:        p.Title,
		PriceMinor:   p.PricePerNight.Amount,
		Currency:     p.PricePerNight.Currency,
		Capacity:     p.Capacity,
		HostIdentity: p.HostIdentity,
		HostName:     p.HostName,
	}
}

func (c cachedProperty) toProperty() *domainproperty.Property {
	return &domainproperty.Property{
		Ref:           domainproperty.Ref{ID: domainproperty.ID(c.ID), Type: domainproperty.Type(c.Type)},
		Title:         c.Title,
		PricePerNight: money.Money{Amount: c.PriceMinor, Currency: c.Currency},
		Capacity:      c.Capacity,
		HostIdentity:  c.HostIdentity,
		HostName:      c.HostName,
	}
}

var _ domainproperty.Directory = (*CachedPropertyDirectory)(nil)
