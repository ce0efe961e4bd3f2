package identity

import (
	"context"
	"errors"
	"strings"

	domainuser "stayhub/internal/domain/user"
)

var ErrUnauthenticated = errors.New("identity: caller not authenticated")

// Principal is the authenticated caller as established by the transport layer.
type Principal struct {
	Identity    string
	DisplayName string
	Roles       []string
}

func (p Principal) Authenticated() bool {
	return strings.TrimSpace(p.Identity) != ""
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	p.Identity = domainuser.NormalizeEmail(p.Identity)
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || !p.Authenticated() {
		return Principal{}, false
	}
	return p, true
}

// CallerScoped is implemented by commands and queries that act on behalf of a caller.
type CallerScoped interface {
	CallerIdentity() string
}

// Authorizer rejects caller-scoped messages that carry no identity.
type Authorizer struct{}

func (Authorizer) Authorize(_ context.Context, message any) error {
	scoped, ok := message.(CallerScoped)
	if !ok {
		return nil
	}
	if strings.TrimSpace(scoped.CallerIdentity()) == "" {
		return ErrUnauthenticated
	}
	return nil
}
