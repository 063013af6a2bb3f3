package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/adoption"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/audit"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/httpapi"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/obs"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/policy"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/scheduler"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	env := envOr("ADOPTION_ENV", "development")

	cfg, err := policy.NewConfig(env,
		policy.WithAuditLogging(envBool("ADOPTION_AUDIT_LOG", false)),
	)
	if err != nil {
		log.Fatalf("policy config: %v", err)
	}
	if envBool("ADOPTION_BYPASS_ALL", false) {
		if err := cfg.SetBypass(true); err != nil {
			log.Fatalf("bypass: %v", err)
		}
	}

	// Storage: Postgres when a DSN is configured, otherwise in-process.
	var (
		registry  adoption.Service
		taskStore scheduler.Store
		probe     httpapi.ReadyProbe
		closeFn   func() error
	)
	if dsn := os.Getenv("ADOPTION_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		registry = store
		taskStore = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeFn = store.Close
	} else {
		registry = adoption.NewInMemory()
		taskStore = scheduler.NewMemStore()
		log.Printf("ADOPTION_PG_DSN not set, using in-memory storage")
	}

	sink := audit.NewLogSink()

	resolver, err := adoption.NewResolver(registry)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	engine, err := policy.NewEngine(cfg, resolver, sink)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	sched, err := scheduler.New(taskStore)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	promote, err := scheduler.NewPromoteExecutor(registry, sink)
	if err != nil {
		log.Fatalf("promote executor: %v", err)
	}
	if err := sched.Register(scheduler.KindPromoteToOrg, promote); err != nil {
		log.Fatalf("register executor: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Engine:         engine,
		Policies:       cfg,
		Registry:       registry,
		Scheduler:      sched,
		Sink:           sink,
		ReadyProbe:     probe,
		Version:        version,
		PromotionDelay: envDuration("ADOPTION_PROMOTION_DELAY", time.Minute),
		TokenTTL:       envDuration("ADOPTION_TOKEN_TTL", time.Hour),
	})

	srv := &http.Server{
		Addr:              envOr("ADOPTION_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	pollCtx, stopPoll := context.WithCancel(context.Background())
	go sched.Run(pollCtx, envDuration("ADOPTION_POLL_INTERVAL", 15*time.Second))

	log.Printf("Starting adoption-api %s (%s) on %s", version, env, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)
	stopPoll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if closeFn != nil {
		_ = closeFn()
	}
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}
