package adoption

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/ids"
)

// Service defines the registry operations the core and the thin CRUD surface
// consume. Postgres and in-memory implementations exist; both are equivalent
// for the core's contracts.
type Service interface {
	CreateUser(ctx context.Context, email string, role identity.Role) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	PromoteUser(ctx context.Context, userID string, role identity.Role, orgID string) (User, error)

	CreateRescue(ctx context.Context, r Rescue) (Rescue, error)
	GetRescue(ctx context.Context, id string) (Rescue, error)
	ListRescues(ctx context.Context) ([]Rescue, error)
	UpdateRescue(ctx context.Context, id string, upd RescueUpdate) (Rescue, error)

	CreatePet(ctx context.Context, p Pet) (Pet, error)
	GetPet(ctx context.Context, id string) (Pet, error)
	ListPets(ctx context.Context) ([]Pet, error)
	UpdatePet(ctx context.Context, id string, upd PetUpdate) (Pet, error)

	CreateApplication(ctx context.Context, a Application) (Application, error)
	GetApplication(ctx context.Context, id string) (Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID string) ([]Application, error)
	UpdateApplicationStatus(ctx context.Context, id, status string) (Application, error)

	CreatePromotionRequest(ctx context.Context, req PromotionRequest) (PromotionRequest, error)
	GetPromotionRequest(ctx context.Context, id string) (PromotionRequest, error)
	ApprovePromotionRequest(ctx context.Context, id string, decidedAt time.Time) (PromotionRequest, error)
}

// InMemory implements Service with in-process concurrency safety. Used by
// tests and when the API runs without a database DSN.
type InMemory struct {
	mu        sync.RWMutex
	users     map[string]*User
	rescues   map[string]*Rescue
	pets      map[string]*Pet
	apps      map[string]*Application
	requests  map[string]*PromotionRequest
	userEmail map[string]string // email -> user id
}

// NewInMemory creates an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{
		users:     make(map[string]*User),
		rescues:   make(map[string]*Rescue),
		pets:      make(map[string]*Pet),
		apps:      make(map[string]*Application),
		requests:  make(map[string]*PromotionRequest),
		userEmail: make(map[string]string),
	}
}

var _ Service = (*InMemory)(nil)

func (s *InMemory) CreateUser(ctx context.Context, email string, role identity.Role) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if role == "" {
		role = identity.RoleUser
	}
	if !role.Known() {
		return User{}, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.userEmail[email]; exists {
		return User{}, ErrConflict
	}
	now := time.Now().UTC()
	u := &User{ID: ids.New(), Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	s.userEmail[email] = u.ID
	return *u, nil
}

func (s *InMemory) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.TrimSpace(id)]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *InMemory) PromoteUser(ctx context.Context, userID string, role identity.Role, orgID string) (User, error) {
	if !role.Known() {
		return User{}, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.TrimSpace(userID)]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Role = role
	u.OrgID = strings.TrimSpace(orgID)
	u.UpdatedAt = time.Now().UTC()
	return *u, nil
}

func (s *InMemory) CreateRescue(ctx context.Context, r Rescue) (Rescue, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return Rescue{}, fmt.Errorf("%w: rescue name is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = ids.New()
	r.CreatedAt = time.Now().UTC()
	stored := r
	s.rescues[r.ID] = &stored
	return r, nil
}

func (s *InMemory) GetRescue(ctx context.Context, id string) (Rescue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rescues[strings.TrimSpace(id)]
	if !ok {
		return Rescue{}, ErrNotFound
	}
	return *r, nil
}

func (s *InMemory) ListRescues(ctx context.Context) ([]Rescue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rescue, 0, len(s.rescues))
	for _, r := range s.rescues {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdateRescue(ctx context.Context, id string, upd RescueUpdate) (Rescue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rescues[strings.TrimSpace(id)]
	if !ok {
		return Rescue{}, ErrNotFound
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Rescue{}, fmt.Errorf("%w: rescue name is required", ErrInvalidInput)
		}
		r.Name = name
	}
	if upd.Location != nil {
		r.Location = strings.TrimSpace(*upd.Location)
	}
	if upd.Description != nil {
		r.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Provisional != nil {
		r.Provisional = *upd.Provisional
	}
	return *r, nil
}

func (s *InMemory) CreatePet(ctx context.Context, p Pet) (Pet, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.RescueID = strings.TrimSpace(p.RescueID)
	if p.Name == "" {
		return Pet{}, fmt.Errorf("%w: pet name is required", ErrInvalidInput)
	}
	if p.RescueID == "" {
		return Pet{}, fmt.Errorf("%w: rescue_id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rescues[p.RescueID]; !ok {
		return Pet{}, ErrNotFound
	}
	p.ID = ids.New()
	p.CreatedAt = time.Now().UTC()
	stored := p
	s.pets[p.ID] = &stored
	return p, nil
}

func (s *InMemory) GetPet(ctx context.Context, id string) (Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pets[strings.TrimSpace(id)]
	if !ok {
		return Pet{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) ListPets(ctx context.Context) ([]Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pet, 0, len(s.pets))
	for _, p := range s.pets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdatePet(ctx context.Context, id string, upd PetUpdate) (Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pets[strings.TrimSpace(id)]
	if !ok {
		return Pet{}, ErrNotFound
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Pet{}, fmt.Errorf("%w: pet name is required", ErrInvalidInput)
		}
		p.Name = name
	}
	if upd.Species != nil {
		p.Species = strings.TrimSpace(*upd.Species)
	}
	return *p, nil
}

func (s *InMemory) CreateApplication(ctx context.Context, a Application) (Application, error) {
	a.PetID = strings.TrimSpace(a.PetID)
	a.ApplicantID = strings.TrimSpace(a.ApplicantID)
	if a.PetID == "" || a.ApplicantID == "" {
		return Application{}, fmt.Errorf("%w: pet_id and applicant_id are required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pet, ok := s.pets[a.PetID]
	if !ok {
		return Application{}, ErrNotFound
	}
	a.ID = ids.New()
	a.RescueID = pet.RescueID
	a.Status = ApplicationPending
	a.CreatedAt = time.Now().UTC()
	stored := a
	s.apps[a.ID] = &stored
	return a, nil
}

func (s *InMemory) GetApplication(ctx context.Context, id string) (Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[strings.TrimSpace(id)]
	if !ok {
		return Application{}, ErrNotFound
	}
	return *a, nil
}

func (s *InMemory) ListApplicationsByApplicant(ctx context.Context, applicantID string) ([]Application, error) {
	applicantID = strings.TrimSpace(applicantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Application
	for _, a := range s.apps {
		if a.ApplicantID == applicantID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdateApplicationStatus(ctx context.Context, id, status string) (Application, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	switch status {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
	default:
		return Application{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[strings.TrimSpace(id)]
	if !ok {
		return Application{}, ErrNotFound
	}
	a.Status = status
	return *a, nil
}

func (s *InMemory) CreatePromotionRequest(ctx context.Context, req PromotionRequest) (PromotionRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.OrgName = strings.TrimSpace(req.OrgName)
	if req.UserID == "" {
		return PromotionRequest{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if req.OrgName == "" {
		return PromotionRequest{}, fmt.Errorf("%w: org_name is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[req.UserID]; !ok {
		return PromotionRequest{}, ErrNotFound
	}
	req.ID = ids.New()
	req.Status = PromotionPending
	req.DecidedAt = nil
	req.CreatedAt = time.Now().UTC()
	stored := req
	s.requests[req.ID] = &stored
	return req, nil
}

func (s *InMemory) GetPromotionRequest(ctx context.Context, id string) (PromotionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[strings.TrimSpace(id)]
	if !ok {
		return PromotionRequest{}, ErrNotFound
	}
	return *r, nil
}

func (s *InMemory) ApprovePromotionRequest(ctx context.Context, id string, decidedAt time.Time) (PromotionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[strings.TrimSpace(id)]
	if !ok {
		return PromotionRequest{}, ErrNotFound
	}
	r.Status = PromotionApprovedAutomatic
	at := decidedAt.UTC()
	r.DecidedAt = &at
	return *r, nil
}
