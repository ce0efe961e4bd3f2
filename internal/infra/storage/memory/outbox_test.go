package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	appoutbox "stayhub/internal/app/outbox"
)

func TestOutboxRetainsOnlyRecentRecords(t *testing.T) {
	ctx := context.Background()
	box := &Outbox{Retain: 3}
	for i := 0; i < 5; i++ {
		if err := box.Add(ctx, appoutbox.EventRecord{ID: fmt.Sprintf("evt-%d", i)}); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := box.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
	got := box.Published()
	if len(got) != 3 || got[0].ID != "evt-2" || got[2].ID != "evt-4" {
		t.Fatalf("published = %+v", got)
	}
}

func TestOutboxDefaultRetention(t *testing.T) {
	ctx := context.Background()
	box := NewOutbox()
	for i := 0; i < defaultRetain+10; i++ {
		_ = box.Add(ctx, appoutbox.EventRecord{ID: fmt.Sprintf("evt-%d", i)})
	}
	if err := box.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got := box.Published()
	if len(got) != defaultRetain || got[len(got)-1].ID != fmt.Sprintf("evt-%d", defaultRetain+9) {
		t.Fatalf("kept %d records, last %+v", len(got), got[len(got)-1])
	}
}

func TestOutboxHandsBatchToSink(t *testing.T) {
	ctx := context.Background()
	var batches [][]appoutbox.EventRecord
	sinkErr := errors.New("broker down")
	box := &Outbox{Sink: func(_ context.Context, recs []appoutbox.EventRecord) error {
		batches = append(batches, recs)
		return sinkErr
	}}
	if err := box.Flush(ctx); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
	_ = box.Add(ctx, appoutbox.EventRecord{ID: "evt-1"})
	if err := box.Flush(ctx); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("batches = %+v", batches)
	}
}
