package identity

import (
	"context"
	"testing"
	"time"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected no identity on fresh context")
	}

	ctx = WithContext(ctx, Context{SubjectID: "u7", Role: RoleOrgMember, OrgID: "org-1"})
	ident, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected identity")
	}
	if ident.SubjectID != "u7" || ident.Role != RoleOrgMember || ident.OrgID != "org-1" {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	empty := WithContext(context.Background(), Context{})
	if _, ok := FromContext(empty); ok {
		t.Fatalf("identity without subject must not resolve")
	}
}

func TestParseRole(t *testing.T) {
	if got := ParseRole(" Admin "); got != RoleAdmin {
		t.Fatalf("unexpected role: %q", got)
	}
	if ParseRole("superuser").Known() {
		t.Fatalf("unknown role must not validate")
	}
	if !RoleUser.Known() || !RoleOrgMember.Known() || !RoleAdmin.Known() {
		t.Fatalf("builtin roles must validate")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("u42", RoleOrgMember, "org-9", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	ident, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if ident.SubjectID != "u42" {
		t.Fatalf("unexpected subject: %s", ident.SubjectID)
	}
	if ident.Role != RoleOrgMember {
		t.Fatalf("unexpected role: %s", ident.Role)
	}
	if ident.OrgID != "org-9" {
		t.Fatalf("unexpected org: %s", ident.OrgID)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := ParseToken(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseToken("not.a.token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("u42", RoleUser, "", time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
