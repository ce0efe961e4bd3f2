package booking

import "stayhub/internal/domain/user"

// Role is the caller's relation to one booking.
type Role string

const (
	RoleNone  Role = "none"
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

type Action string

const (
	ActionRead     Action = "read"
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

// Policy decides which actions a role may take on a booking.
type Policy interface {
	Allows(role Role, action Action) bool
}

// StaticPolicy is an in-process role to actions table.
type StaticPolicy map[Role][]Action

func (p StaticPolicy) Allows(role Role, action Action) bool {
	for _, a := range p[role] {
		if a == action {
			return true
		}
	}
	return false
}

// DefaultPolicy grants guests read and cancel, hosts every transition.
var DefaultPolicy = StaticPolicy{
	RoleGuest: {ActionRead, ActionCancel},
	RoleHost:  {ActionRead, ActionCancel, ActionConfirm, ActionComplete},
}

// RoleOf classifies identity against the booking. A caller recorded as both
// guest and host is treated as the host.
func RoleOf(identity string, b *Booking) Role {
	id := user.NormalizeEmail(identity)
	if id == "" || b == nil {
		return RoleNone
	}
	switch id {
	case b.Host.Identity:
		return RoleHost
	case b.Guest.Identity:
		return RoleGuest
	default:
		return RoleNone
	}
}

// Authorize classifies the caller and checks the action against the policy.
// A nil policy falls back to DefaultPolicy.
func Authorize(p Policy, identity string, b *Booking, action Action) (Role, error) {
	if p == nil {
		p = DefaultPolicy
	}
	role := RoleOf(identity, b)
	if role == RoleNone || !p.Allows(role, action) {
		return role, deniedError(action)
	}
	return role, nil
}

func deniedError(action Action) error {
	switch action {
	case ActionConfirm:
		return ErrConfirmHostOnly
	case ActionComplete:
		return ErrCompleteHostOnly
	case ActionCancel:
		return ErrCancelDenied
	default:
		return ErrReadDenied
	}
}
