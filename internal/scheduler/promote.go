package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/audit"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/obs"
)

// provisionalDescription marks rescues created by the automatic promotion
// path; they remain in this state until a human verifies the organization.
const provisionalDescription = "Provisional rescue created automatically from a promotion request. Details pending verification."

// PromoteExecutor executes promote_to_org tasks: it flips the requesting user
// to the rescue role and materializes a provisional rescue organization
// seeded from the request.
type PromoteExecutor struct {
	svc  adoption.Service
	sink audit.Sink
}

// NewPromoteExecutor builds the executor. sink may be nil.
func NewPromoteExecutor(svc adoption.Service, sink audit.Sink) (*PromoteExecutor, error) {
	if svc == nil {
		return nil, errors.New("adoption service is required")
	}
	return &PromoteExecutor{svc: svc, sink: sink}, nil
}

var _ Executor = (*PromoteExecutor)(nil)

// Execute performs one promotion. Delivery is at-least-once, so the role
// check below is what makes redelivery safe: a crash between execution and
// the executed mark would otherwise double-promote the subject or create a
// second organization on the next poll.
//
// Returning nil marks the task executed; returning an error leaves it
// pending for the next poll.
func (e *PromoteExecutor) Execute(ctx context.Context, task Task) error {
	req, err := e.svc.GetPromotionRequest(ctx, task.RequestID)
	if err != nil {
		if errors.Is(err, adoption.ErrNotFound) {
			// The referenced request is gone for good; retrying forever
			// cannot help. Consume the task.
			obs.LogEntry(map[string]any{
				"level":      "warn",
				"msg":        "promotion request missing, task consumed",
				"task_id":    task.ID,
				"request_id": task.RequestID,
			})
			return nil
		}
		return fmt.Errorf("load promotion request: %w", err)
	}

	user, err := e.svc.GetUser(ctx, task.SubjectID)
	if err != nil {
		if errors.Is(err, adoption.ErrNotFound) {
			obs.LogEntry(map[string]any{
				"level":      "warn",
				"msg":        "promotion subject missing, task consumed",
				"task_id":    task.ID,
				"subject_id": task.SubjectID,
			})
			return nil
		}
		return fmt.Errorf("load subject: %w", err)
	}

	// Idempotency guard: a subject that already left the base role was
	// promoted before, by this task or out of band. No-op, still executed.
	if user.Role != identity.RoleUser {
		e.record(ctx, task, map[string]any{
			"outcome":    "skipped",
			"role":       string(user.Role),
			"request_id": req.ID,
		})
		return nil
	}

	rescue, err := e.svc.CreateRescue(ctx, adoption.Rescue{
		Name:        req.OrgName,
		Location:    req.OrgLocation,
		Description: provisionalDescription,
		FounderID:   user.ID,
		Provisional: true,
	})
	if err != nil {
		return fmt.Errorf("create rescue: %w", err)
	}

	if _, err := e.svc.PromoteUser(ctx, user.ID, identity.RoleOrgMember, rescue.ID); err != nil {
		return fmt.Errorf("promote user: %w", err)
	}

	if _, err := e.svc.ApprovePromotionRequest(ctx, req.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("approve promotion request: %w", err)
	}

	e.record(ctx, task, map[string]any{
		"outcome":     "promoted",
		"role_before": string(identity.RoleUser),
		"role_after":  string(identity.RoleOrgMember),
		"rescue_id":   rescue.ID,
		"request_id":  req.ID,
		"provenance":  "automatic",
	})
	return nil
}

// record is best effort; audit failures never fail the promotion.
func (e *PromoteExecutor) record(ctx context.Context, task Task, fields map[string]any) {
	if e.sink == nil {
		return
	}
	fields["task_id"] = task.ID
	fields["subject_id"] = task.SubjectID
	if err := e.sink.Record(ctx, "scheduler.promote", fields); err != nil {
		obs.LogEntry(map[string]any{
			"level": "warn",
			"msg":   "audit sink failed",
			"error": err.Error(),
		})
	}
}
