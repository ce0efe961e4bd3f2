package middleware

import "context"

// Validator checks the shape of a command or query (dates, ids, lengths).
type Validator interface {
	Validate(ctx context.Context, message any) error
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		return guardCommands("validator", nil)
	}
	return guardCommands("validator", v.Validate)
}
