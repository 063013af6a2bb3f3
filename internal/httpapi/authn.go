package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withIdentity attaches the bearer token's identity to the request context.
// A missing or bad token on a non-public path does not fail here; policy
// checks decide whether anonymous access is allowed.
func (a *API) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// Registration is the one unauthenticated POST.
		if r.URL.Path == "/v1/users" && r.Method == http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get(authHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		ident, err := identity.ParseToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithContext(r.Context(), ident)))
	})
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// requirePolicy runs the named check and writes the denial response when the
// caller is refused. Returns true when the request may proceed.
func (a *API) requirePolicy(w http.ResponseWriter, r *http.Request, name policy.Name, ref *policy.ResourceRef) bool {
	var ident *identity.Context
	if id, ok := identity.FromContext(r.Context()); ok {
		ident = &id
	}
	d := a.engine.Check(r.Context(), name, ident, ref)
	if d.Allowed {
		return true
	}
	switch d.Reason {
	case policy.ReasonUnauthenticated:
		writeError(w, r, http.StatusUnauthorized, string(d.Reason))
	case policy.ReasonNotFound:
		writeError(w, r, http.StatusNotFound, string(d.Reason))
	case policy.ReasonMissingResourceRef:
		writeError(w, r, http.StatusBadRequest, string(d.Reason))
	case policy.ReasonUnavailable:
		writeError(w, r, http.StatusServiceUnavailable, string(d.Reason))
	default:
		writeError(w, r, http.StatusForbidden, string(d.Reason))
	}
	return false
}
