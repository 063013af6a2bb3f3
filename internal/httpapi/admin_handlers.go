package httpapi

import (
	"errors"
	"net/http"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
)

type bypassRequest struct {
	Enabled bool `json:"enabled"`
}

// handleForcePoll executes every pending task regardless of due time.
func (a *API) handleForcePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePolicy(w, r, policy.RequireAdmin, nil) {
		return
	}
	executed, err := a.sched.ForcePollAll(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "poll failed")
		return
	}
	a.audit(r.Context(), "scheduler.force_poll", map[string]any{"executed": executed})
	writeJSON(w, http.StatusOK, map[string]any{"executed": executed})
}

// handlePolicies reports the effective policy toggles.
func (a *API) handlePolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePolicy(w, r, policy.RequireAdmin, nil) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"environment": a.policies.Environment(),
		"policies":    a.policies.Snapshot(),
	})
}

// handleBypass flips the global bypass toggle. Refused in production.
func (a *API) handleBypass(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requirePolicy(w, r, policy.RequireAdmin, nil) {
		return
	}
	var req bypassRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.policies.SetBypass(req.Enabled); err != nil {
		if errors.Is(err, policy.ErrEnvironmentRestricted) {
			writeError(w, r, http.StatusConflict, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.audit(r.Context(), "policy.bypass", map[string]any{"enabled": req.Enabled})
	writeJSON(w, http.StatusOK, map[string]any{"bypass_all": req.Enabled})
}
