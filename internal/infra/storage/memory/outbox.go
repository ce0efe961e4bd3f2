package memory

import (
	"context"
	"sync"

	appoutbox "stayhub/internal/app/outbox"
)

// defaultRetain bounds how many flushed records Published can return.
const defaultRetain = 256

// Outbox keeps events in memory until flushed. Flushed records are handed to
// Sink when set; the most recent Retain of them (defaultRetain when zero) stay
// available via Published.
type Outbox struct {
	mu        sync.Mutex
	records   []appoutbox.EventRecord
	published []appoutbox.EventRecord
	Sink      func(ctx context.Context, records []appoutbox.EventRecord) error
	Retain    int
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	batch := o.records
	o.records = nil
	o.published = append(o.published, batch...)
	if limit := o.retain(); len(o.published) > limit {
		o.published = append([]appoutbox.EventRecord(nil), o.published[len(o.published)-limit:]...)
	}
	sink := o.Sink
	o.mu.Unlock()
	if sink == nil || len(batch) == 0 {
		return nil
	}
	return sink(ctx, batch)
}

func (o *Outbox) Published() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, len(o.published))
	copy(out, o.published)
	return out
}

func (o *Outbox) retain() int {
	if o.Retain > 0 {
		return o.Retain
	}
	return defaultRetain
}

var _ appoutbox.Outbox = (*Outbox)(nil)
