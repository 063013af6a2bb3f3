package identity

import (
	"context"
	"strings"
)

// Role classifies what a caller is allowed to act as.
type Role string

const (
	// RoleUser is a regular adopter account.
	RoleUser Role = "user"
	// RoleOrgMember is a member of a rescue organization.
	RoleOrgMember Role = "org_member"
	// RoleAdmin is a platform administrator.
	RoleAdmin Role = "admin"
)

// Known reports whether the role is one of the recognised values.
func (r Role) Known() bool {
	switch r {
	case RoleUser, RoleOrgMember, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes a raw role string. Unknown values pass through
// unchanged so strict validation can reject them downstream.
func ParseRole(raw string) Role {
	return Role(strings.TrimSpace(strings.ToLower(raw)))
}

// Context describes an already-authenticated caller. It is produced by the
// transport layer once per request and is read-only from then on.
type Context struct {
	SubjectID string
	Role      Role
	OrgID     string
}

type identityContextKey struct{}

// WithContext attaches the authenticated caller to the request context.
func WithContext(ctx context.Context, ident Context) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &ident)
}

// FromContext extracts the authenticated caller from the context.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Context)
	if !ok || v == nil || strings.TrimSpace(v.SubjectID) == "" {
		return Context{}, false
	}
	return *v, true
}
