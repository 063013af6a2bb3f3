package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/ids"
)

var _ adoption.Service = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, email string, role identity.Role) (adoption.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return adoption.User{}, fmt.Errorf("%w: valid email is required", adoption.ErrInvalidInput)
	}
	if role == "" {
		role = identity.RoleUser
	}
	if !role.Known() {
		return adoption.User{}, fmt.Errorf("%w: unsupported role %s", adoption.ErrInvalidInput, role)
	}

	u := adoption.User{ID: ids.New(), Email: email, Role: role}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, role)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, u.ID, u.Email, string(u.Role))
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return adoption.User{}, adoption.ErrConflict
		}
		return adoption.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (adoption.User, error) {
	var (
		u     adoption.User
		role  string
		orgID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, email, role, org_id, created_at, updated_at
		from users where id = $1
	`, strings.TrimSpace(id)).Scan(&u.ID, &u.Email, &role, &orgID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adoption.User{}, adoption.ErrNotFound
	}
	if err != nil {
		return adoption.User{}, err
	}
	u.Role = identity.Role(role)
	u.OrgID = orgID.String
	return u, nil
}

func (s *Store) PromoteUser(ctx context.Context, userID string, role identity.Role, orgID string) (adoption.User, error) {
	if !role.Known() {
		return adoption.User{}, fmt.Errorf("%w: unsupported role %s", adoption.ErrInvalidInput, role)
	}
	var org any
	if trimmed := strings.TrimSpace(orgID); trimmed != "" {
		org = trimmed
	}
	res, err := s.db.ExecContext(ctx, `
		update users set role = $2, org_id = $3, updated_at = now()
		where id = $1
	`, strings.TrimSpace(userID), string(role), org)
	if err != nil {
		return adoption.User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return adoption.User{}, adoption.ErrNotFound
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) CreateRescue(ctx context.Context, r adoption.Rescue) (adoption.Rescue, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return adoption.Rescue{}, fmt.Errorf("%w: rescue name is required", adoption.ErrInvalidInput)
	}
	r.ID = ids.New()
	var founder any
	if trimmed := strings.TrimSpace(r.FounderID); trimmed != "" {
		founder = trimmed
	}
	row := s.db.QueryRowContext(ctx, `
		insert into rescues (id, name, location, description, founder_id, provisional)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at
	`, r.ID, r.Name, r.Location, r.Description, founder, r.Provisional)
	if err := row.Scan(&r.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return adoption.Rescue{}, adoption.ErrNotFound
		}
		return adoption.Rescue{}, err
	}
	return r, nil
}

func (s *Store) GetRescue(ctx context.Context, id string) (adoption.Rescue, error) {
	var (
		r       adoption.Rescue
		founder sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, location, description, founder_id, provisional, created_at
		from rescues where id = $1
	`, strings.TrimSpace(id)).Scan(&r.ID, &r.Name, &r.Location, &r.Description, &founder, &r.Provisional, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adoption.Rescue{}, adoption.ErrNotFound
	}
	if err != nil {
		return adoption.Rescue{}, err
	}
	r.FounderID = founder.String
	return r, nil
}

func (s *Store) ListRescues(ctx context.Context) ([]adoption.Rescue, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, location, description, founder_id, provisional, created_at
		from rescues order by id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adoption.Rescue
	for rows.Next() {
		var (
			r       adoption.Rescue
			founder sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Location, &r.Description, &founder, &r.Provisional, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.FounderID = founder.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRescue(ctx context.Context, id string, upd adoption.RescueUpdate) (adoption.Rescue, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return adoption.Rescue{}, fmt.Errorf("%w: rescue name is required", adoption.ErrInvalidInput)
		}
		upd.Name = &name
	}
	res, err := s.db.ExecContext(ctx, `
		update rescues set
			name        = coalesce($2, name),
			location    = coalesce($3, location),
			description = coalesce($4, description),
			provisional = coalesce($5, provisional)
		where id = $1
	`, strings.TrimSpace(id), upd.Name, upd.Location, upd.Description, upd.Provisional)
	if err != nil {
		return adoption.Rescue{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return adoption.Rescue{}, adoption.ErrNotFound
	}
	return s.GetRescue(ctx, id)
}

func (s *Store) CreatePet(ctx context.Context, p adoption.Pet) (adoption.Pet, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.RescueID = strings.TrimSpace(p.RescueID)
	if p.Name == "" {
		return adoption.Pet{}, fmt.Errorf("%w: pet name is required", adoption.ErrInvalidInput)
	}
	if p.RescueID == "" {
		return adoption.Pet{}, fmt.Errorf("%w: rescue_id is required", adoption.ErrInvalidInput)
	}
	p.ID = ids.New()
	row := s.db.QueryRowContext(ctx, `
		insert into pets (id, name, species, rescue_id)
		values ($1, $2, $3, $4)
		returning created_at
	`, p.ID, p.Name, p.Species, p.RescueID)
	if err := row.Scan(&p.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return adoption.Pet{}, adoption.ErrNotFound
		}
		return adoption.Pet{}, err
	}
	return p, nil
}

func (s *Store) GetPet(ctx context.Context, id string) (adoption.Pet, error) {
	var p adoption.Pet
	err := s.db.QueryRowContext(ctx, `
		select id, name, species, rescue_id, created_at
		from pets where id = $1
	`, strings.TrimSpace(id)).Scan(&p.ID, &p.Name, &p.Species, &p.RescueID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adoption.Pet{}, adoption.ErrNotFound
	}
	if err != nil {
		return adoption.Pet{}, err
	}
	return p, nil
}

func (s *Store) ListPets(ctx context.Context) ([]adoption.Pet, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, species, rescue_id, created_at
		from pets order by id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adoption.Pet
	for rows.Next() {
		var p adoption.Pet
		if err := rows.Scan(&p.ID, &p.Name, &p.Species, &p.RescueID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePet(ctx context.Context, id string, upd adoption.PetUpdate) (adoption.Pet, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return adoption.Pet{}, fmt.Errorf("%w: pet name is required", adoption.ErrInvalidInput)
		}
		upd.Name = &name
	}
	res, err := s.db.ExecContext(ctx, `
		update pets set
			name    = coalesce($2, name),
			species = coalesce($3, species)
		where id = $1
	`, strings.TrimSpace(id), upd.Name, upd.Species)
	if err != nil {
		return adoption.Pet{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return adoption.Pet{}, adoption.ErrNotFound
	}
	return s.GetPet(ctx, id)
}

func (s *Store) CreateApplication(ctx context.Context, a adoption.Application) (adoption.Application, error) {
	a.PetID = strings.TrimSpace(a.PetID)
	a.ApplicantID = strings.TrimSpace(a.ApplicantID)
	if a.PetID == "" || a.ApplicantID == "" {
		return adoption.Application{}, fmt.Errorf("%w: pet_id and applicant_id are required", adoption.ErrInvalidInput)
	}

	// The application inherits the pet's rescue so ownership checks need a
	// single lookup later.
	pet, err := s.GetPet(ctx, a.PetID)
	if err != nil {
		return adoption.Application{}, err
	}

	a.ID = ids.New()
	a.RescueID = pet.RescueID
	a.Status = adoption.ApplicationPending
	row := s.db.QueryRowContext(ctx, `
		insert into applications (id, pet_id, applicant_id, rescue_id, status)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, a.ID, a.PetID, a.ApplicantID, a.RescueID, a.Status)
	if err := row.Scan(&a.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return adoption.Application{}, adoption.ErrNotFound
		}
		return adoption.Application{}, err
	}
	return a, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (adoption.Application, error) {
	var a adoption.Application
	err := s.db.QueryRowContext(ctx, `
		select id, pet_id, applicant_id, rescue_id, status, created_at
		from applications where id = $1
	`, strings.TrimSpace(id)).Scan(&a.ID, &a.PetID, &a.ApplicantID, &a.RescueID, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adoption.Application{}, adoption.ErrNotFound
	}
	if err != nil {
		return adoption.Application{}, err
	}
	return a, nil
}

func (s *Store) ListApplicationsByApplicant(ctx context.Context, applicantID string) ([]adoption.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, pet_id, applicant_id, rescue_id, status, created_at
		from applications where applicant_id = $1 order by id
	`, strings.TrimSpace(applicantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adoption.Application
	for rows.Next() {
		var a adoption.Application
		if err := rows.Scan(&a.ID, &a.PetID, &a.ApplicantID, &a.RescueID, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, id, status string) (adoption.Application, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	switch status {
	case adoption.ApplicationPending, adoption.ApplicationApproved, adoption.ApplicationRejected:
	default:
		return adoption.Application{}, fmt.Errorf("%w: unsupported status %s", adoption.ErrInvalidInput, status)
	}
	res, err := s.db.ExecContext(ctx, `
		update applications set status = $2 where id = $1
	`, strings.TrimSpace(id), status)
	if err != nil {
		return adoption.Application{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return adoption.Application{}, adoption.ErrNotFound
	}
	return s.GetApplication(ctx, id)
}

func (s *Store) CreatePromotionRequest(ctx context.Context, req adoption.PromotionRequest) (adoption.PromotionRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.OrgName = strings.TrimSpace(req.OrgName)
	if req.UserID == "" {
		return adoption.PromotionRequest{}, fmt.Errorf("%w: user_id is required", adoption.ErrInvalidInput)
	}
	if req.OrgName == "" {
		return adoption.PromotionRequest{}, fmt.Errorf("%w: org_name is required", adoption.ErrInvalidInput)
	}
	req.ID = ids.New()
	req.Status = adoption.PromotionPending
	req.DecidedAt = nil
	row := s.db.QueryRowContext(ctx, `
		insert into promotion_requests (id, user_id, org_name, org_location, status)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, req.ID, req.UserID, req.OrgName, req.OrgLocation, req.Status)
	if err := row.Scan(&req.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return adoption.PromotionRequest{}, adoption.ErrNotFound
		}
		return adoption.PromotionRequest{}, err
	}
	return req, nil
}

func (s *Store) GetPromotionRequest(ctx context.Context, id string) (adoption.PromotionRequest, error) {
	var (
		req     adoption.PromotionRequest
		decided sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, org_name, org_location, status, decided_at, created_at
		from promotion_requests where id = $1
	`, strings.TrimSpace(id)).Scan(&req.ID, &req.UserID, &req.OrgName, &req.OrgLocation, &req.Status, &decided, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return adoption.PromotionRequest{}, adoption.ErrNotFound
	}
	if err != nil {
		return adoption.PromotionRequest{}, err
	}
	if decided.Valid {
		at := decided.Time.UTC()
		req.DecidedAt = &at
	}
	return req, nil
}

func (s *Store) ApprovePromotionRequest(ctx context.Context, id string, decidedAt time.Time) (adoption.PromotionRequest, error) {
	res, err := s.db.ExecContext(ctx, `
		update promotion_requests set status = $2, decided_at = $3
		where id = $1
	`, strings.TrimSpace(id), adoption.PromotionApprovedAutomatic, decidedAt.UTC())
	if err != nil {
		return adoption.PromotionRequest{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return adoption.PromotionRequest{}, adoption.ErrNotFound
	}
	return s.GetPromotionRequest(ctx, id)
}
