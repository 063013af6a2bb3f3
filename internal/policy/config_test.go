package policy

import (
	"errors"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewConfig("development")
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	for _, name := range []Name{
		RequireAdmin, RequireAuthenticated, RequireOrgRole, RequireSelf,
		RequireOwnOrg, StrictRoleValidation, EnforceResourceOwnership,
	} {
		if !cfg.IsEnabled(name) {
			t.Fatalf("expected %s enabled by default", name)
		}
	}
	if cfg.IsEnabled(EnableAuditLogging) {
		t.Fatalf("audit logging must default off")
	}
	if cfg.IsEnabled(BypassAll) {
		t.Fatalf("bypass must default off")
	}
}

func TestCompositeTogglesFollowConstituent(t *testing.T) {
	cfg, err := NewConfig("development", WithPolicy(RequireSelf, false))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.IsEnabled(AdminOrSelf) {
		t.Fatalf("admin_or_self must follow require_self toggle")
	}
	if !cfg.IsEnabled(AdminOrOrgRole) {
		t.Fatalf("admin_or_org_role must remain enabled")
	}
	if !cfg.IsEnabled(PetOwnership) || !cfg.IsEnabled(ApplicationAccess) {
		t.Fatalf("ownership checks must follow enforce_resource_ownership")
	}
}

func TestSetBypassRestrictedInProduction(t *testing.T) {
	cfg, err := NewConfig("production")
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if err := cfg.SetBypass(true); !errors.Is(err, ErrEnvironmentRestricted) {
		t.Fatalf("expected ErrEnvironmentRestricted, got %v", err)
	}
	if cfg.IsEnabled(BypassAll) {
		t.Fatalf("bypass must stay off after rejected enable")
	}
	// Disabling is always allowed, even in production.
	if err := cfg.SetBypass(false); err != nil {
		t.Fatalf("SetBypass(false): %v", err)
	}
}

func TestSetBypassOutsideProduction(t *testing.T) {
	cfg, err := NewConfig("staging")
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if err := cfg.SetBypass(true); err != nil {
		t.Fatalf("SetBypass: %v", err)
	}
	if !cfg.IsEnabled(BypassAll) {
		t.Fatalf("expected bypass enabled")
	}
}

func TestWithPolicyRejectsBypassInProduction(t *testing.T) {
	if _, err := NewConfig("production", WithPolicy(BypassAll, true)); !errors.Is(err, ErrEnvironmentRestricted) {
		t.Fatalf("expected ErrEnvironmentRestricted, got %v", err)
	}
}

func TestWithPolicyUnknownName(t *testing.T) {
	if _, err := NewConfig("development", WithPolicy(Name("made_up"), true)); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg, err := NewConfig("development")
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	snap := cfg.Snapshot()
	snap[RequireAdmin] = false
	if !cfg.IsEnabled(RequireAdmin) {
		t.Fatalf("mutating the snapshot must not affect the config")
	}
}
