package authz

import (
	"testing"

	domainbooking "stayhub/internal/domain/booking"
)

func TestEnforcerMatchesDefaultPolicy(t *testing.T) {
	e, err := NewEnforcer()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	roles := []domainbooking.Role{domainbooking.RoleNone, domainbooking.RoleGuest, domainbooking.RoleHost}
	actions := []domainbooking.Action{domainbooking.ActionRead, domainbooking.ActionConfirm, domainbooking.ActionCancel, domainbooking.ActionComplete}
	for _, r := range roles {
		for _, a := range actions {
			want := domainbooking.DefaultPolicy.Allows(r, a)
			if got := e.Allows(r, a); got != want {
				t.Errorf("%s/%s = %v, want %v", r, a, got, want)
			}
		}
	}
}

func TestEnforcerRejectsMalformedPolicy(t *testing.T) {
	if _, err := NewEnforcerFromText(modelText, "p, guest"); err == nil {
		t.Fatal("expected error for short policy line")
	}
}
