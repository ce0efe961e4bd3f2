package uow

import (
	"context"
	"testing"

	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainuser "stayhub/internal/domain/user"
)

type plainUnit struct{}

func (plainUnit) Booking() domainbooking.Repository    { return nil }
func (plainUnit) Properties() domainproperty.Directory { return nil }
func (plainUnit) Users() domainuser.Directory          { return nil }
func (plainUnit) Commit(context.Context) error         { return nil }
func (plainUnit) Rollback(context.Context) error       { return nil }

type sessionKey struct{}

type sessionUnit struct{ plainUnit }

func (u *sessionUnit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, "session")
}

func TestAttachInjectsDriverSession(t *testing.T) {
	unit := &sessionUnit{}
	ctx := Attach(context.Background(), unit)
	got, ok := FromContext(ctx)
	if !ok || got != unit {
		t.Fatalf("unit not stored: %v %v", got, ok)
	}
	if ctx.Value(sessionKey{}) != "session" {
		t.Fatal("session not injected")
	}
}

func TestFromContextWithoutUnit(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("found unit on empty context")
	}
	ctx := Attach(context.Background(), plainUnit{})
	if _, ok := FromContext(ctx); !ok {
		t.Fatal("plain unit not stored")
	}
}
