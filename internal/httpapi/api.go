package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/audit"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/obs"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/scheduler"
)

// ReadyProbe reports readiness, pinging the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the API's collaborators and tunables.
type Options struct {
	Engine         *policy.Engine
	Policies       *policy.Config
	Registry       adoption.Service
	Scheduler      *scheduler.Scheduler
	Sink           audit.Sink
	ReadyProbe     ReadyProbe
	Version        string
	PromotionDelay time.Duration
	TokenTTL       time.Duration
}

// API is the HTTP layer over the decision engine, the registry and the
// scheduler.
type API struct {
	mux            *http.ServeMux
	engine         *policy.Engine
	policies       *policy.Config
	registry       adoption.Service
	sched          *scheduler.Scheduler
	sink           audit.Sink
	readyProbe     ReadyProbe
	version        string
	promotionDelay time.Duration
	tokenTTL       time.Duration
}

const (
	defaultPromotionDelay = time.Minute
	defaultTokenTTL       = time.Hour
)

func New(opts Options) *API {
	a := &API{
		mux:            http.NewServeMux(),
		engine:         opts.Engine,
		policies:       opts.Policies,
		registry:       opts.Registry,
		sched:          opts.Scheduler,
		sink:           opts.Sink,
		readyProbe:     opts.ReadyProbe,
		version:        opts.Version,
		promotionDelay: opts.PromotionDelay,
		tokenTTL:       opts.TokenTTL,
	}
	if a.promotionDelay <= 0 {
		a.promotionDelay = defaultPromotionDelay
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = defaultTokenTTL
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// registration and token minting
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/auth/token", a.handleToken)

	// adoption registry
	a.mux.HandleFunc("/v1/pets", a.handlePetsCollection)
	a.mux.HandleFunc("/v1/pets/", a.handlePetResource)
	a.mux.HandleFunc("/v1/rescues", a.handleRescuesCollection)
	a.mux.HandleFunc("/v1/rescues/", a.handleRescueResource)
	a.mux.HandleFunc("/v1/applications", a.handleApplicationsCollection)
	a.mux.HandleFunc("/v1/applications/", a.handleApplicationResource)

	// promotion workflow
	a.mux.HandleFunc("/v1/promotion-requests", a.handlePromotionCollection)
	a.mux.HandleFunc("/v1/promotion-requests/", a.handlePromotionResource)

	// operator surface
	a.mux.HandleFunc("/v1/admin/tasks/poll", a.handleForcePoll)
	a.mux.HandleFunc("/v1/admin/policies", a.handlePolicies)
	a.mux.HandleFunc("/v1/admin/policies/bypass", a.handleBypass)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withIdentity(h)
	h = Logging(h)
	h = obs.Instrument(h)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "adoption-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "adoption-api",
		"time":        time.Now().UTC().Format(time.RFC3339),
		"version":     a.version,
		"environment": a.policies.Environment(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
