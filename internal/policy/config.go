package policy

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Name identifies a policy check a route can declare as a precondition.
type Name string

// Toggleable policies. Each check class is gated by exactly one of these.
const (
	RequireAdmin             Name = "require_admin"
	RequireAuthenticated     Name = "require_authenticated"
	RequireOrgRole           Name = "require_org_role"
	RequireSelf              Name = "require_self"
	RequireOwnOrg            Name = "require_own_org"
	StrictRoleValidation     Name = "strict_role_validation"
	EnforceResourceOwnership Name = "enforce_resource_ownership"
	EnableAuditLogging       Name = "enable_audit_logging"
	BypassAll                Name = "bypass_all"
)

// Composite and ownership-validated checks. These are not independent
// toggles; each is controlled by its non-admin constituent's toggle.
const (
	AdminOrSelf       Name = "admin_or_self"
	AdminOrOrgRole    Name = "admin_or_org_role"
	OrgOrOwnOrg       Name = "org_or_own_org"
	PetOwnership      Name = "pet_ownership"
	ApplicationAccess Name = "application_access"
)

// toggles lists every independently configurable policy.
var toggles = []Name{
	RequireAdmin,
	RequireAuthenticated,
	RequireOrgRole,
	RequireSelf,
	RequireOwnOrg,
	StrictRoleValidation,
	EnforceResourceOwnership,
	EnableAuditLogging,
	BypassAll,
}

// toggleFor maps a check name onto the toggle that gates it.
func toggleFor(name Name) Name {
	switch name {
	case AdminOrSelf:
		return RequireSelf
	case AdminOrOrgRole:
		return RequireOrgRole
	case OrgOrOwnOrg:
		return RequireOwnOrg
	case PetOwnership, ApplicationAccess:
		return EnforceResourceOwnership
	}
	return name
}

// EnvProduction is the environment name in which the bypass switch is locked.
const EnvProduction = "production"

// ErrEnvironmentRestricted is returned when bypass is requested in production.
var ErrEnvironmentRestricted = errors.New("bypass is not permitted in this environment")

// ErrUnknownPolicy is returned when a configuration option names no toggle.
var ErrUnknownPolicy = errors.New("unknown policy")

// Config holds the process-wide policy switches. Toggles other than the
// bypass are fixed at construction time so request handlers cannot silently
// disable enforcement mid-process.
type Config struct {
	env string

	mu      sync.RWMutex
	enabled map[Name]bool
}

// Option adjusts a toggle during construction.
type Option func(*Config) error

// WithPolicy sets one toggle's startup value.
func WithPolicy(name Name, enabled bool) Option {
	return func(c *Config) error {
		if _, ok := c.enabled[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
		}
		if name == BypassAll && enabled && c.env == EnvProduction {
			return ErrEnvironmentRestricted
		}
		c.enabled[name] = enabled
		return nil
	}
}

// WithAuditLogging enables decision audit records.
func WithAuditLogging(enabled bool) Option {
	return WithPolicy(EnableAuditLogging, enabled)
}

// NewConfig builds the policy configuration for the given environment.
// Defaults are all-enforcing; audit logging and bypass start disabled.
func NewConfig(env string, opts ...Option) (*Config, error) {
	c := &Config{
		env:     strings.TrimSpace(strings.ToLower(env)),
		enabled: make(map[Name]bool, len(toggles)),
	}
	for _, name := range toggles {
		c.enabled[name] = true
	}
	c.enabled[EnableAuditLogging] = false
	c.enabled[BypassAll] = false

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Environment returns the environment name the config was built for.
func (c *Config) Environment() string { return c.env }

// IsEnabled reports whether the toggle gating the named check is on.
func (c *Config) IsEnabled(name Name) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled[toggleFor(name)]
}

// SetBypass flips the global bypass switch. Enabling it is rejected in
// production; disabling is always permitted.
func (c *Config) SetBypass(enabled bool) error {
	if enabled && c.env == EnvProduction {
		return ErrEnvironmentRestricted
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled[BypassAll] = enabled
	return nil
}

// Snapshot returns a copy of the effective toggle state for ops surfaces.
func (c *Config) Snapshot() map[Name]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Name]bool, len(c.enabled))
	for k, v := range c.enabled {
		out[k] = v
	}
	return out
}
