package authz

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin"

	domainbooking "stayhub/internal/domain/booking"
)

//go:embed rbac_model.conf
var modelText string

//go:embed policy.csv
var policyText string

// Enforcer answers role and action checks from a casbin RBAC model.
type Enforcer struct {
	mu sync.Mutex
	e  *casbin.Enforcer
}

// NewEnforcer builds an enforcer from the embedded model and policy.
func NewEnforcer() (*Enforcer, error) {
	return NewEnforcerFromText(modelText, policyText)
}

func NewEnforcerFromText(model, policy string) (*Enforcer, error) {
	e, err := casbin.NewEnforcerSafe(casbin.NewModel(model))
	if err != nil {
		return nil, fmt.Errorf("authz: build enforcer: %w", err)
	}
	for lineNo, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) != 3 || fields[0] != "p" {
			return nil, fmt.Errorf("authz: policy line %d: %q", lineNo+1, line)
		}
		e.AddPolicy(fields[1], fields[2])
	}
	return &Enforcer{e: e}, nil
}

// Allows implements booking.Policy. Enforcement errors deny.
func (a *Enforcer) Allows(role domainbooking.Role, action domainbooking.Action) bool {
	if role == domainbooking.RoleNone {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	ok, err := a.e.EnforceSafe(string(role), string(action))
	return err == nil && ok
}

var _ domainbooking.Policy = (*Enforcer)(nil)
