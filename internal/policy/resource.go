package policy

import (
	"context"
	"errors"
	"strings"
)

// ResourceKind names the entity families the engine can resolve owners for.
type ResourceKind string

const (
	KindPet         ResourceKind = "pet"
	KindApplication ResourceKind = "application"
	KindRescue      ResourceKind = "rescue"
	KindUser        ResourceKind = "user"
)

// RefIDs carries the identity references found in one request location.
type RefIDs struct {
	SubjectID string
	OrgID     string
}

// ResourceRef describes the resource a check applies to. Path, Body and Query
// hold ids as extracted from the corresponding request locations; the engine
// resolves them with a fixed path, body, query precedence.
type ResourceRef struct {
	Kind ResourceKind
	// ID is the resource identifier used for ownership lookups.
	ID string

	Path  RefIDs
	Body  RefIDs
	Query RefIDs
}

// SubjectID resolves the referenced subject id, path first, then body, then
// query. Changing this precedence changes authorization outcomes; keep fixed.
func (r *ResourceRef) SubjectID() string {
	if r == nil {
		return ""
	}
	for _, v := range []string{r.Path.SubjectID, r.Body.SubjectID, r.Query.SubjectID} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// OrgID resolves the referenced org id with the same precedence as SubjectID.
func (r *ResourceRef) OrgID() string {
	if r == nil {
		return ""
	}
	for _, v := range []string{r.Path.OrgID, r.Body.OrgID, r.Query.OrgID} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// OwnershipRecord maps a resource to the subject and/or org that owns it.
type OwnershipRecord struct {
	ResourceID     string
	OwnerSubjectID string
	OwnerOrgID     string
}

// ErrOwnerNotFound is returned by resolvers when the resource does not exist.
var ErrOwnerNotFound = errors.New("resource not found")

// OwnershipResolver looks up the owner of a resource. Implementations perform
// a single read per call and never cache: stale ownership is a security bug.
// It must be safe to call for callers that turn out to be unauthorized; the
// check enforces access, not the lookup.
type OwnershipResolver interface {
	ResolveOwner(ctx context.Context, kind ResourceKind, id string) (OwnershipRecord, error)
}
