package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type holdCommand struct{ Nights int }

func (holdCommand) Key() string { return "test.hold" }

type otherCommand struct{}

func (otherCommand) Key() string { return "test.hold" }

type missingCommand struct{}

func (missingCommand) Key() string { return "test.missing" }

func TestDispatchTypedHandler(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, "test.hold", HandlerFunc[holdCommand, int](func(ctx context.Context, cmd holdCommand) (int, error) {
		return cmd.Nights * 2, nil
	}))

	got, err := Dispatch[holdCommand, int](context.Background(), bus, holdCommand{Nights: 3})
	if err != nil || got != 6 {
		t.Fatalf("dispatch = %d, %v", got, err)
	}

	if _, err := bus.Dispatch(context.Background(), otherCommand{}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected invalid command, got %v", err)
	}

	_, err = Dispatch[holdCommand, string](context.Background(), bus, holdCommand{Nights: 1})
	if !errors.Is(err, ErrResultType) || !strings.Contains(err.Error(), "test.hold returned int") {
		t.Fatalf("expected descriptive result type error, got %v", err)
	}
}

func TestDispatchUnknownKey(t *testing.T) {
	_, err := NewInMemoryBus().Dispatch(context.Background(), missingCommand{})
	if !errors.Is(err, ErrHandlerNotFound) || !strings.Contains(err.Error(), "test.missing") {
		t.Fatalf("expected not found naming the key, got %v", err)
	}
	if _, err := Dispatch[missingCommand, int](context.Background(), nil, missingCommand{}); !errors.Is(err, ErrNilBus) {
		t.Fatalf("expected nil bus error, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	bus := NewInMemoryBus()
	h := func(context.Context, Command) (any, error) { return nil, nil }
	bus.RegisterRaw("test.hold", h)
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), "duplicate") {
			t.Fatalf("expected duplicate registration panic, got %v", r)
		}
	}()
	bus.RegisterRaw("test.hold", h)
}
