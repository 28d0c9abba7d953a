// Package identity carries the authenticated caller through request contexts.
package identity

import (
	"context"
	"strings"

	"github.com/wolfman30/clinic-booking/internal/apperr"
)

// Role distinguishes the three kinds of caller.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes a role string.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Identity is the authenticated caller produced by the session layer.
type Identity struct {
	ID   string
	Role Role
}

// Is reports whether the identity is the given role.
func (i Identity) Is(role Role) bool {
	return i.Role == role
}

type ctxKey string

const identityKey ctxKey = "clinic.identity"

// WithIdentity stores the caller in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the caller if present.
func FromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && id.ID != "" && id.Role.Valid()
}

// Require returns the caller when it holds one of roles.
func Require(ctx context.Context, roles ...Role) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, apperr.Unauthorized("Not authorized. Please log in again.")
	}
	for _, role := range roles {
		if id.Role == role {
			return id, nil
		}
	}
	return Identity{}, apperr.Forbidden("You are not allowed to perform this action.")
}
