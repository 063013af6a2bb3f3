package adoption

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
)

func seedRegistry(t *testing.T) (*InMemory, User, Rescue, Pet) {
	t.Helper()
	svc := NewInMemory()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "adopter@example.com", identity.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	rescue, err := svc.CreateRescue(ctx, Rescue{Name: "Capybara Haven", Location: "Austin"})
	if err != nil {
		t.Fatalf("CreateRescue: %v", err)
	}
	pet, err := svc.CreatePet(ctx, Pet{Name: "Pebble", Species: "capybara", RescueID: rescue.ID})
	if err != nil {
		t.Fatalf("CreatePet: %v", err)
	}
	return svc, user, rescue, pet
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewInMemory()
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "not-an-email", identity.RoleUser); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "dup@example.com", identity.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.CreateUser(ctx, "Dup@Example.com", identity.RoleUser); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestPromoteUser(t *testing.T) {
	svc, user, rescue, _ := seedRegistry(t)
	ctx := context.Background()

	promoted, err := svc.PromoteUser(ctx, user.ID, identity.RoleOrgMember, rescue.ID)
	if err != nil {
		t.Fatalf("PromoteUser: %v", err)
	}
	if promoted.Role != identity.RoleOrgMember || promoted.OrgID != rescue.ID {
		t.Fatalf("unexpected user after promotion: %+v", promoted)
	}
	if _, err := svc.PromoteUser(ctx, "ghost", identity.RoleOrgMember, rescue.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplicationInheritsRescue(t *testing.T) {
	svc, user, rescue, pet := seedRegistry(t)
	ctx := context.Background()

	app, err := svc.CreateApplication(ctx, Application{PetID: pet.ID, ApplicantID: user.ID})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.RescueID != rescue.ID {
		t.Fatalf("application must inherit the pet's rescue: %+v", app)
	}
	if app.Status != ApplicationPending {
		t.Fatalf("new applications start pending: %+v", app)
	}

	mine, err := svc.ListApplicationsByApplicant(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListApplicationsByApplicant: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != app.ID {
		t.Fatalf("unexpected applications: %+v", mine)
	}
}

func TestUpdateApplicationStatus(t *testing.T) {
	svc, user, _, pet := seedRegistry(t)
	ctx := context.Background()

	app, err := svc.CreateApplication(ctx, Application{PetID: pet.ID, ApplicantID: user.ID})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if _, err := svc.UpdateApplicationStatus(ctx, app.ID, "withdrawn"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	updated, err := svc.UpdateApplicationStatus(ctx, app.ID, ApplicationApproved)
	if err != nil {
		t.Fatalf("UpdateApplicationStatus: %v", err)
	}
	if updated.Status != ApplicationApproved {
		t.Fatalf("unexpected status: %+v", updated)
	}
}

func TestPromotionRequestLifecycle(t *testing.T) {
	svc, user, _, _ := seedRegistry(t)
	ctx := context.Background()

	req, err := svc.CreatePromotionRequest(ctx, PromotionRequest{UserID: user.ID, OrgName: "New Rescue"})
	if err != nil {
		t.Fatalf("CreatePromotionRequest: %v", err)
	}
	if req.Status != PromotionPending || req.DecidedAt != nil {
		t.Fatalf("new requests start pending: %+v", req)
	}

	decided := time.Now().UTC()
	approved, err := svc.ApprovePromotionRequest(ctx, req.ID, decided)
	if err != nil {
		t.Fatalf("ApprovePromotionRequest: %v", err)
	}
	if approved.Status != PromotionApprovedAutomatic {
		t.Fatalf("unexpected status: %+v", approved)
	}
	if approved.DecidedAt == nil || !approved.DecidedAt.Equal(decided) {
		t.Fatalf("decided_at not recorded: %+v", approved)
	}
}
