package auth

import (
	"fmt"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// Operation names a protected action in the role policy.
type Operation string

const (
	OpUsersMe     Operation = "users.me"
	OpUsersList   Operation = "users.list"
	OpUsersGet    Operation = "users.get"
	OpUsersUpdate Operation = "users.update"
	OpUsersDelete Operation = "users.delete"
)

// RoleSet is an allowed-role set.
type RoleSet map[domain.Role]struct{}

// NewRoleSet builds a set from roles.
func NewRoleSet(roles ...domain.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Authorize reports whether identity's role is in allowed.
func Authorize(identity *domain.ResolvedIdentity, allowed RoleSet) bool {
	if identity == nil {
		return false
	}
	_, ok := allowed[identity.Role]
	return ok
}

// Policy maps each protected operation to its allowed roles. It is built once at startup
// and read-only afterwards.
type Policy struct {
	rules map[Operation]RoleSet
}

// NewPolicy validates and freezes rules. Every operation needs at least one role.
func NewPolicy(rules map[Operation][]domain.Role) (*Policy, error) {
	p := &Policy{rules: make(map[Operation]RoleSet, len(rules))}
	for op, roles := range rules {
		if len(roles) == 0 {
			return nil, fmt.Errorf("policy for %q has no allowed roles", op)
		}
		p.rules[op] = NewRoleSet(roles...)
	}
	return p, nil
}

// Authorize returns ErrForbidden unless identity may perform op. Unknown operations are denied.
func (p *Policy) Authorize(identity *domain.ResolvedIdentity, op Operation) error {
	allowed, ok := p.rules[op]
	if !ok || !Authorize(identity, allowed) {
		return ErrForbidden
	}
	return nil
}

// RolesFromStrings converts configured role names.
func RolesFromStrings(names []string) []domain.Role {
	roles := make([]domain.Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, domain.Role(name))
	}
	return roles
}
