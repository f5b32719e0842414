// Package auth is the capability boundary of the core: it answers whether a
// caller holds a role. Membership policy lives outside this module.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eth2030/xlbus/core/types"
)

// ErrUnauthorized is returned when a caller lacks the role an operation needs.
var ErrUnauthorized = errors.New("auth: caller not authorized")

// Role names a capability.
type Role uint8

const (
	// RoleOwner administers membership.
	RoleOwner Role = iota
	// RoleWorker may commit remote state roots.
	RoleWorker
	// RoleGateway may declare messages into the outbox.
	RoleGateway
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleWorker:
		return "worker"
	case RoleGateway:
		return "gateway"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole returns the role with the given name.
func ParseRole(name string) (Role, error) {
	for _, r := range []Role{RoleOwner, RoleWorker, RoleGateway} {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("auth: unknown role %q", name)
}

// Authorizer reports whether caller holds role.
type Authorizer interface {
	IsAuthorized(caller types.Address, role Role) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(caller types.Address, role Role) bool

// IsAuthorized implements Authorizer.
func (f AuthorizerFunc) IsAuthorized(caller types.Address, role Role) bool {
	return f(caller, role)
}

// AllowAll authorizes every caller for every role.
var AllowAll = AuthorizerFunc(func(types.Address, Role) bool { return true })

// Require returns ErrUnauthorized unless a grants role to caller.
func Require(a Authorizer, caller types.Address, role Role) error {
	if a == nil || !a.IsAuthorized(caller, role) {
		return fmt.Errorf("%w: %s is not a %s", ErrUnauthorized, caller, role)
	}
	return nil
}

// Allowlist is a static, mutable membership table. Safe for concurrent use.
type Allowlist struct {
	mu      sync.RWMutex
	members map[Role]map[types.Address]struct{}
}

// NewAllowlist creates an empty allowlist.
func NewAllowlist() *Allowlist {
	return &Allowlist{members: make(map[Role]map[types.Address]struct{})}
}

// Grant adds addrs to role.
func (l *Allowlist) Grant(role Role, addrs ...types.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.members[role]
	if !ok {
		set = make(map[types.Address]struct{})
		l.members[role] = set
	}
	for _, a := range addrs {
		set[a] = struct{}{}
	}
}

// Revoke removes addr from role.
func (l *Allowlist) Revoke(role Role, addr types.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.members[role], addr)
}

// IsAuthorized implements Authorizer. The zero address is never authorized.
func (l *Allowlist) IsAuthorized(caller types.Address, role Role) bool {
	if caller.IsZero() {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.members[role][caller]
	return ok
}
