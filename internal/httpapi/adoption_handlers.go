package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
)

type createPetRequest struct {
	Name     string `json:"name"`
	Species  string `json:"species"`
	RescueID string `json:"rescue_id"`
}

type updatePetRequest struct {
	Name    *string `json:"name"`
	Species *string `json:"species"`
}

type createRescueRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type updateRescueRequest struct {
	Name        *string `json:"name"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

type createApplicationRequest struct {
	PetID       string `json:"pet_id"`
	ApplicantID string `json:"applicant_id"`
}

type updateApplicationStatusRequest struct {
	Status string `json:"status"`
}

// --- pets ---

func (a *API) handlePetsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPets(w, r)
	case http.MethodPost:
		a.createPet(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePetResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/v1/pets/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getPet(w, r, id)
	case http.MethodPatch:
		a.updatePet(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) listPets(w http.ResponseWriter, r *http.Request) {
	if !a.requirePolicy(w, r, policy.RequireAuthenticated, nil) {
		return
	}
	pets, err := a.registry.ListPets(r.Context())
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": pets})
}

func (a *API) getPet(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requirePolicy(w, r, policy.RequireAuthenticated, nil) {
		return
	}
	pet, err := a.registry.GetPet(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

func (a *API) createPet(w http.ResponseWriter, r *http.Request) {
	var req createPetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ref := &policy.ResourceRef{
		Kind: policy.KindRescue,
		Body: policy.RefIDs{OrgID: req.RescueID},
	}
	if !a.requirePolicy(w, r, policy.RequireOwnOrg, ref) {
		return
	}
	pet, err := a.registry.CreatePet(r.Context(), adoption.Pet{
		Name:     req.Name,
		Species:  req.Species,
		RescueID: req.RescueID,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "pet.create", map[string]any{
		"pet_id":    pet.ID,
		"rescue_id": pet.RescueID,
	})
	w.Header().Set("Location", "/v1/pets/"+pet.ID)
	writeJSON(w, http.StatusCreated, pet)
}

func (a *API) updatePet(w http.ResponseWriter, r *http.Request, id string) {
	var req updatePetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ref := &policy.ResourceRef{Kind: policy.KindPet, ID: id}
	if !a.requirePolicy(w, r, policy.PetOwnership, ref) {
		return
	}
	pet, err := a.registry.UpdatePet(r.Context(), id, adoption.PetUpdate{
		Name:    req.Name,
		Species: req.Species,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "pet.update", map[string]any{"pet_id": pet.ID})
	writeJSON(w, http.StatusOK, pet)
}

// --- rescues ---

func (a *API) handleRescuesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRescues(w, r)
	case http.MethodPost:
		a.createRescue(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRescueResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/v1/rescues/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getRescue(w, r, id)
	case http.MethodPatch:
		a.updateRescue(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) listRescues(w http.ResponseWriter, r *http.Request) {
	if !a.requirePolicy(w, r, policy.RequireAuthenticated, nil) {
		return
	}
	rescues, err := a.registry.ListRescues(r.Context())
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rescues})
}

func (a *API) getRescue(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requirePolicy(w, r, policy.RequireAuthenticated, nil) {
		return
	}
	rescue, err := a.registry.GetRescue(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rescue)
}

func (a *API) createRescue(w http.ResponseWriter, r *http.Request) {
	var req createRescueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.requirePolicy(w, r, policy.RequireAdmin, nil) {
		return
	}
	rescue, err := a.registry.CreateRescue(r.Context(), adoption.Rescue{
		Name:        req.Name,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "rescue.create", map[string]any{"rescue_id": rescue.ID})
	w.Header().Set("Location", "/v1/rescues/"+rescue.ID)
	writeJSON(w, http.StatusCreated, rescue)
}

func (a *API) updateRescue(w http.ResponseWriter, r *http.Request, id string) {
	var req updateRescueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ref := &policy.ResourceRef{
		Kind: policy.KindRescue,
		ID:   id,
		Path: policy.RefIDs{OrgID: id},
	}
	if !a.requirePolicy(w, r, policy.AdminOrOrgRole, ref) {
		return
	}
	rescue, err := a.registry.UpdateRescue(r.Context(), id, adoption.RescueUpdate{
		Name:        req.Name,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "rescue.update", map[string]any{"rescue_id": rescue.ID})
	writeJSON(w, http.StatusOK, rescue)
}

// --- applications ---

func (a *API) handleApplicationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listApplications(w, r)
	case http.MethodPost:
		a.createApplication(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleApplicationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/applications/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if id, ok := strings.CutSuffix(path, "/status"); ok {
		id = strings.TrimSuffix(id, "/")
		if id == "" || r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.updateApplicationStatus(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getApplication(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) listApplications(w http.ResponseWriter, r *http.Request) {
	applicantID := strings.TrimSpace(r.URL.Query().Get("applicant_id"))
	if applicantID == "" {
		writeError(w, r, http.StatusBadRequest, "applicant_id query parameter is required")
		return
	}
	ref := &policy.ResourceRef{
		Kind:  policy.KindUser,
		Query: policy.RefIDs{SubjectID: applicantID},
	}
	if !a.requirePolicy(w, r, policy.RequireSelf, ref) {
		return
	}
	apps, err := a.registry.ListApplicationsByApplicant(r.Context(), applicantID)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": apps})
}

func (a *API) getApplication(w http.ResponseWriter, r *http.Request, id string) {
	ref := &policy.ResourceRef{Kind: policy.KindApplication, ID: id}
	if !a.requirePolicy(w, r, policy.ApplicationAccess, ref) {
		return
	}
	app, err := a.registry.GetApplication(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (a *API) createApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ref := &policy.ResourceRef{
		Kind: policy.KindUser,
		Body: policy.RefIDs{SubjectID: req.ApplicantID},
	}
	if !a.requirePolicy(w, r, policy.RequireSelf, ref) {
		return
	}
	app, err := a.registry.CreateApplication(r.Context(), adoption.Application{
		PetID:       req.PetID,
		ApplicantID: req.ApplicantID,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "application.create", map[string]any{
		"application_id": app.ID,
		"pet_id":         app.PetID,
	})
	w.Header().Set("Location", "/v1/applications/"+app.ID)
	writeJSON(w, http.StatusCreated, app)
}

func (a *API) updateApplicationStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req updateApplicationStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	app, err := a.registry.GetApplication(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	// Only the rescue the application targets (or an admin) decides it.
	ref := &policy.ResourceRef{
		Kind: policy.KindApplication,
		ID:   app.ID,
		Path: policy.RefIDs{OrgID: app.RescueID},
	}
	if !a.requirePolicy(w, r, policy.OrgOrOwnOrg, ref) {
		return
	}
	app, err = a.registry.UpdateApplicationStatus(r.Context(), id, req.Status)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "application.status", map[string]any{
		"application_id": app.ID,
		"status":         app.Status,
	})
	writeJSON(w, http.StatusOK, app)
}

// --- helpers ---

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if a.sink == nil {
		return
	}
	_ = a.sink.Record(ctx, event, fields)
}

func resourceID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, adoption.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, adoption.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, adoption.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
