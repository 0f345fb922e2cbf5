package auth

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient    Role = "client"
	RoleMechanic  Role = "mechanic"
	RoleSecretary Role = "secretary"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleMechanic, RoleSecretary:
		return true
	}
	return false
}

// Principal is an authenticated actor. Role is fixed once assigned.
type Principal struct {
	ID       uuid.UUID
	Username string
	Role     Role
	Active   bool
}

func (p *Principal) Authenticated() bool {
	return p != nil && p.ID != uuid.Nil && p.Active && p.Role.Valid()
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextKey{}).(*Principal)
	return p
}
