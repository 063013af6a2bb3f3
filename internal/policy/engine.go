package policy

import (
	"context"
	"errors"
	"strings"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/audit"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/obs"
)

// Reason explains a decision. Values are stable and safe to return to
// callers; they never reveal more than the generic forbidden/not-found
// distinction the checks themselves make.
type Reason string

const (
	ReasonPolicyDisabled     Reason = "policy disabled"
	ReasonBypassEnabled      Reason = "bypass enabled"
	ReasonAuthenticated      Reason = "authenticated"
	ReasonRoleMatched        Reason = "role matched"
	ReasonSelf               Reason = "self"
	ReasonOrgMatched         Reason = "org matched"
	ReasonOwner              Reason = "owner"
	ReasonAdmin              Reason = "admin"
	ReasonUnauthenticated    Reason = "unauthenticated"
	ReasonForbidden          Reason = "forbidden"
	ReasonNotFound           Reason = "not found"
	ReasonMissingResourceRef Reason = "missing resource reference"
	ReasonUnavailable        Reason = "store unavailable"
)

// Decision is the outcome of a policy check. Denial is a normal value, not an
// error: the transport layer decides what status to map it to.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow(reason Reason) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason Reason) Decision  { return Decision{Allowed: false, Reason: reason} }

// Engine evaluates policy checks against the caller identity, consulting the
// ownership resolver for resource-scoped rules.
type Engine struct {
	cfg      *Config
	resolver OwnershipResolver
	sink     audit.Sink
}

// NewEngine constructs the decision engine. The resolver may be nil only when
// no ownership-validated checks will run; the sink may be nil to disable
// audit emission regardless of the EnableAuditLogging toggle.
func NewEngine(cfg *Config, resolver OwnershipResolver, sink audit.Sink) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("policy config is required")
	}
	return &Engine{cfg: cfg, resolver: resolver, sink: sink}, nil
}

// Check evaluates the named policy for the given caller. ident is nil for
// anonymous requests. ref is required only by resource-scoped checks.
func (e *Engine) Check(ctx context.Context, name Name, ident *identity.Context, ref *ResourceRef) Decision {
	d := e.evaluate(ctx, name, ident, ref)
	obs.ObserveDecision(string(name), outcome(d))
	e.emit(ctx, name, ident, ref, d)
	return d
}

func (e *Engine) evaluate(ctx context.Context, name Name, ident *identity.Context, ref *ResourceRef) Decision {
	if !e.cfg.IsEnabled(name) {
		return allow(ReasonPolicyDisabled)
	}
	if e.cfg.IsEnabled(BypassAll) {
		return allow(ReasonBypassEnabled)
	}
	if ident == nil || strings.TrimSpace(ident.SubjectID) == "" {
		return deny(ReasonUnauthenticated)
	}
	// Strict role validation applies to every rule that consults the role.
	if roleSensitive(name) && e.cfg.IsEnabled(StrictRoleValidation) && !ident.Role.Known() {
		return deny(ReasonForbidden)
	}

	switch name {
	case RequireAuthenticated:
		return allow(ReasonAuthenticated)
	case RequireAdmin:
		if ident.Role == identity.RoleAdmin {
			return allow(ReasonRoleMatched)
		}
		return deny(ReasonForbidden)
	case RequireOrgRole:
		if ident.Role == identity.RoleOrgMember {
			return allow(ReasonRoleMatched)
		}
		return deny(ReasonForbidden)
	case RequireSelf:
		return checkSelf(ident, ref)
	case RequireOwnOrg:
		return checkOwnOrg(ident, ref)
	case AdminOrSelf:
		if ident.Role == identity.RoleAdmin {
			return allow(ReasonAdmin)
		}
		return checkSelf(ident, ref)
	case AdminOrOrgRole:
		if ident.Role == identity.RoleAdmin {
			return allow(ReasonAdmin)
		}
		if ident.Role == identity.RoleOrgMember {
			return allow(ReasonRoleMatched)
		}
		return deny(ReasonForbidden)
	case OrgOrOwnOrg:
		if ident.Role == identity.RoleAdmin {
			return allow(ReasonAdmin)
		}
		return checkOwnOrg(ident, ref)
	case PetOwnership, ApplicationAccess:
		return e.checkOwnership(ctx, name, ident, ref)
	}
	return allow(ReasonPolicyDisabled)
}

// roleSensitive reports whether the named check consults the caller's role.
// RequireAuthenticated and RequireSelf compare identity, not role.
func roleSensitive(name Name) bool {
	switch name {
	case RequireAuthenticated, RequireSelf:
		return false
	}
	return true
}

func checkSelf(ident *identity.Context, ref *ResourceRef) Decision {
	subject := ref.SubjectID()
	if subject == "" {
		return deny(ReasonMissingResourceRef)
	}
	if subject == ident.SubjectID {
		return allow(ReasonSelf)
	}
	return deny(ReasonForbidden)
}

func checkOwnOrg(ident *identity.Context, ref *ResourceRef) Decision {
	if ident.Role != identity.RoleOrgMember {
		return deny(ReasonForbidden)
	}
	if strings.TrimSpace(ident.OrgID) == "" {
		return deny(ReasonForbidden)
	}
	org := ref.OrgID()
	if org == "" {
		return deny(ReasonMissingResourceRef)
	}
	if org == ident.OrgID {
		return allow(ReasonOrgMatched)
	}
	return deny(ReasonForbidden)
}

func (e *Engine) checkOwnership(ctx context.Context, name Name, ident *identity.Context, ref *ResourceRef) Decision {
	if ident.Role == identity.RoleAdmin {
		return allow(ReasonAdmin)
	}
	if ref == nil || strings.TrimSpace(ref.ID) == "" {
		return deny(ReasonMissingResourceRef)
	}
	if e.resolver == nil {
		return deny(ReasonUnavailable)
	}
	rec, err := e.resolver.ResolveOwner(ctx, ref.Kind, ref.ID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return deny(ReasonNotFound)
		}
		return deny(ReasonUnavailable)
	}
	if name == ApplicationAccess && rec.OwnerSubjectID != "" && rec.OwnerSubjectID == ident.SubjectID {
		return allow(ReasonOwner)
	}
	if ident.Role == identity.RoleOrgMember && ident.OrgID != "" && rec.OwnerOrgID == ident.OrgID {
		return allow(ReasonOrgMatched)
	}
	return deny(ReasonForbidden)
}

func outcome(d Decision) string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}

func (e *Engine) emit(ctx context.Context, name Name, ident *identity.Context, ref *ResourceRef, d Decision) {
	if e.sink == nil || !e.cfg.IsEnabled(EnableAuditLogging) {
		return
	}
	fields := map[string]any{
		"policy":  string(name),
		"outcome": outcome(d),
		"reason":  string(d.Reason),
	}
	if ident != nil {
		fields["subject_id"] = ident.SubjectID
		fields["subject_role"] = string(ident.Role)
	}
	if ref != nil {
		fields["resource_kind"] = string(ref.Kind)
		if ref.ID != "" {
			fields["resource_id"] = ref.ID
		}
	}
	// Best effort: a failing sink never changes the decision.
	if err := e.sink.Record(ctx, "authz.decision", fields); err != nil {
		obs.LogEntry(map[string]any{
			"level": "warn",
			"msg":   "audit sink failed",
			"error": err.Error(),
		})
	}
}
