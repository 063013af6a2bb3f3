package httpapi

import (
	"net/http"
	"strings"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/scheduler"
)

type createUserRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type createPromotionRequest struct {
	UserID      string `json:"user_id"`
	OrgName     string `json:"org_name"`
	OrgLocation string `json:"org_location"`
}

// --- users ---

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/v1/users/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.registry.CreateUser(r.Context(), req.Email, identity.RoleUser)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.create", map[string]any{"user_id": user.ID})
	w.Header().Set("Location", "/v1/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	ref := &policy.ResourceRef{
		Kind: policy.KindUser,
		ID:   id,
		Path: policy.RefIDs{SubjectID: id},
	}
	if !a.requirePolicy(w, r, policy.AdminOrSelf, ref) {
		return
	}
	user, err := a.registry.GetUser(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleToken mints a bearer token for a known user. The claims mirror the
// user's current role and org so a token issued before a promotion does not
// carry the promoted role.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.registry.GetUser(r.Context(), req.UserID)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	token, err := identity.GenerateToken(user.ID, user.Role, user.OrgID, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.audit(r.Context(), "auth.token.issue", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// --- promotion requests ---

func (a *API) handlePromotionCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPromotion(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handlePromotionResource(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r.URL.Path, "/v1/promotion-requests/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	req, err := a.registry.GetPromotionRequest(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	ref := &policy.ResourceRef{
		Kind: policy.KindUser,
		ID:   req.UserID,
		Path: policy.RefIDs{SubjectID: req.UserID},
	}
	if !a.requirePolicy(w, r, policy.AdminOrSelf, ref) {
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// createPromotion records the request and schedules the deferred promotion.
// The task outlives the request: even if this response is lost, the poll
// loop still promotes the user.
func (a *API) createPromotion(w http.ResponseWriter, r *http.Request) {
	var req createPromotionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ref := &policy.ResourceRef{
		Kind: policy.KindUser,
		Body: policy.RefIDs{SubjectID: req.UserID},
	}
	if !a.requirePolicy(w, r, policy.RequireSelf, ref) {
		return
	}
	created, err := a.registry.CreatePromotionRequest(r.Context(), adoption.PromotionRequest{
		UserID:      req.UserID,
		OrgName:     req.OrgName,
		OrgLocation: req.OrgLocation,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	taskID, err := a.sched.Schedule(r.Context(), scheduler.KindPromoteToOrg, created.UserID, created.ID, a.promotionDelay)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "scheduling failed")
		return
	}
	a.audit(r.Context(), "promotion.request", map[string]any{
		"request_id_promotion": created.ID,
		"user_id":              created.UserID,
		"task_id":              taskID,
		"org_name":             strings.TrimSpace(req.OrgName),
	})
	w.Header().Set("Location", "/v1/promotion-requests/"+created.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"request": created,
		"task_id": taskID,
	})
}
