package adoption

import (
	"errors"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
)

// User is an account on the platform. Role and OrgID mirror what the
// authenticator later embeds in the caller's identity context.
type User struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Role      identity.Role `json:"role"`
	OrgID     string        `json:"org_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Rescue is an organization that lists pets for adoption. Provisional rescues
// are materialized automatically by the promotion workflow and await manual
// verification.
type Rescue struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	FounderID   string    `json:"founder_id,omitempty"`
	Provisional bool      `json:"provisional"`
	CreatedAt   time.Time `json:"created_at"`
}

// Pet is an animal listed by a rescue.
type Pet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	RescueID  string    `json:"rescue_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Application is an adoption application a user files for a pet.
type Application struct {
	ID          string    `json:"id"`
	PetID       string    `json:"pet_id"`
	ApplicantID string    `json:"applicant_id"`
	RescueID    string    `json:"rescue_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Promotion request statuses. ApprovedAutomatic is the terminal state written
// by the scheduler once the deferred promotion fires.
const (
	PromotionPending           = "pending"
	PromotionApprovedAutomatic = "approved_automatic"
)

// PromotionRequest records a user's request to become a rescue. The deferred
// promotion task references exactly one of these.
type PromotionRequest struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	OrgName     string     `json:"org_name"`
	OrgLocation string     `json:"org_location,omitempty"`
	Status      string     `json:"status"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RescueUpdate applies partial changes to a rescue.
type RescueUpdate struct {
	Name        *string
	Location    *string
	Description *string
	Provisional *bool
}

// PetUpdate applies partial changes to a pet.
type PetUpdate struct {
	Name    *string
	Species *string
}
