package adoption

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
)

// Resolver answers ownership lookups for the decision engine by reading the
// registry. One read per call, no caching: ownership can change between
// calls and staleness here would be a security bug.
type Resolver struct {
	svc Service
}

// NewResolver builds an ownership resolver over the given registry.
func NewResolver(svc Service) (*Resolver, error) {
	if svc == nil {
		return nil, errors.New("adoption service is required")
	}
	return &Resolver{svc: svc}, nil
}

var _ policy.OwnershipResolver = (*Resolver)(nil)

// ResolveOwner maps a resource id to its owning subject and/or org.
func (r *Resolver) ResolveOwner(ctx context.Context, kind policy.ResourceKind, id string) (policy.OwnershipRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return policy.OwnershipRecord{}, policy.ErrOwnerNotFound
	}
	switch kind {
	case policy.KindPet:
		pet, err := r.svc.GetPet(ctx, id)
		if err != nil {
			return policy.OwnershipRecord{}, mapErr(err)
		}
		return policy.OwnershipRecord{ResourceID: pet.ID, OwnerOrgID: pet.RescueID}, nil
	case policy.KindApplication:
		app, err := r.svc.GetApplication(ctx, id)
		if err != nil {
			return policy.OwnershipRecord{}, mapErr(err)
		}
		return policy.OwnershipRecord{
			ResourceID:     app.ID,
			OwnerSubjectID: app.ApplicantID,
			OwnerOrgID:     app.RescueID,
		}, nil
	case policy.KindRescue:
		rescue, err := r.svc.GetRescue(ctx, id)
		if err != nil {
			return policy.OwnershipRecord{}, mapErr(err)
		}
		return policy.OwnershipRecord{
			ResourceID:     rescue.ID,
			OwnerSubjectID: rescue.FounderID,
			OwnerOrgID:     rescue.ID,
		}, nil
	case policy.KindUser:
		user, err := r.svc.GetUser(ctx, id)
		if err != nil {
			return policy.OwnershipRecord{}, mapErr(err)
		}
		return policy.OwnershipRecord{
			ResourceID:     user.ID,
			OwnerSubjectID: user.ID,
			OwnerOrgID:     user.OrgID,
		}, nil
	}
	return policy.OwnershipRecord{}, fmt.Errorf("unsupported resource kind %q", kind)
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return policy.ErrOwnerNotFound
	}
	return err
}
