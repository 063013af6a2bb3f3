package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "dupe@example.com", "user").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.CreateUser(context.Background(), "Dupe@Example.com", identity.RoleUser)
	if !errors.Is(err, adoption.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from users where id =").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, adoption.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateApplicationInheritsRescue(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("from pets where id =").
		WithArgs("pet-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "species", "rescue_id", "created_at"}).
			AddRow("pet-1", "Pebble", "capybara", "rescue-1", now))
	mock.ExpectQuery("insert into applications").
		WithArgs(sqlmock.AnyArg(), "pet-1", "user-1", "rescue-1", adoption.ApplicationPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	app, err := store.CreateApplication(context.Background(), adoption.Application{
		PetID:       "pet-1",
		ApplicantID: "user-1",
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.RescueID != "rescue-1" {
		t.Fatalf("application did not inherit the pet's rescue: %s", app.RescueID)
	}
	if app.Status != adoption.ApplicationPending {
		t.Fatalf("unexpected status: %s", app.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePetUnknownRescue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into pets").
		WithArgs(sqlmock.AnyArg(), "Pebble", "capybara", "nope").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := store.CreatePet(context.Background(), adoption.Pet{Name: "Pebble", Species: "capybara", RescueID: "nope"})
	if !errors.Is(err, adoption.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApprovePromotionRequest(t *testing.T) {
	store, mock := newMockStore(t)

	decided := time.Now().UTC()
	mock.ExpectExec("update promotion_requests set status =").
		WithArgs("req-1", adoption.PromotionApprovedAutomatic, decided).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("from promotion_requests where id =").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "org_name", "org_location", "status", "decided_at", "created_at"}).
			AddRow("req-1", "user-1", "Capybara Commons", "Portland", adoption.PromotionApprovedAutomatic, decided, decided.Add(-time.Hour)))

	req, err := store.ApprovePromotionRequest(context.Background(), "req-1", decided)
	if err != nil {
		t.Fatalf("ApprovePromotionRequest: %v", err)
	}
	if req.Status != adoption.PromotionApprovedAutomatic {
		t.Fatalf("unexpected status: %s", req.Status)
	}
	if req.DecidedAt == nil || !req.DecidedAt.Equal(decided) {
		t.Fatalf("decided_at not recorded: %v", req.DecidedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
