package middleware

import "context"

// Authorizer decides whether the caller on ctx may send message. Ownership of a
// particular booking is checked later by the handlers, once it is loaded.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		return guardCommands("authorizer", nil)
	}
	return guardCommands("authorizer", a.Authorize)
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		return guardQueries("authorizer", nil)
	}
	return guardQueries("authorizer", a.Authorize)
}
