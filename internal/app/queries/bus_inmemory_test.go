package queries

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type lookup struct{ ID string }

func (lookup) Key() string { return "test.lookup" }

type unknown struct{}

func (unknown) Key() string { return "test.unknown" }

func TestAskTypedHandler(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, "test.lookup", HandlerFunc[lookup, string](func(ctx context.Context, q lookup) (string, error) {
		return "booking " + q.ID, nil
	}))

	got, err := Ask[lookup, string](context.Background(), bus, lookup{ID: "bk-1"})
	if err != nil || got != "booking bk-1" {
		t.Fatalf("ask = %q, %v", got, err)
	}
	if _, err := Ask[lookup, int](context.Background(), bus, lookup{}); !errors.Is(err, ErrResultType) {
		t.Fatalf("expected result type error, got %v", err)
	}
	_, err = bus.Ask(context.Background(), unknown{})
	if !errors.Is(err, ErrHandlerNotFound) || !strings.Contains(err.Error(), "test.unknown") {
		t.Fatalf("expected not found naming the key, got %v", err)
	}
}

func TestRegisterRejectsDuplicateQuery(t *testing.T) {
	bus := NewInMemoryBus()
	h := func(context.Context, Query) (any, error) { return nil, nil }
	bus.RegisterRaw("test.lookup", h)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration panic")
		}
	}()
	bus.RegisterRaw("test.lookup", h)
}
