package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// ContextInjector is implemented by units whose driver session must travel on
// the context (Mongo session contexts, gorm transactions).
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

type unitKey struct{}

// ContextWithUnitOfWork stores unit on ctx without touching driver state.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, unitKey{}, unit)
}

// Attach lets unit inject its driver session into ctx and then stores it, so
// handlers further down see both.
func Attach(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(unitKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}
