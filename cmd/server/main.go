package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimdesk/internal/audit"
	"claimdesk/internal/claim"
	claimservice "claimdesk/internal/claim/service"
	claimstore "claimdesk/internal/claim/store"
	"claimdesk/internal/claimstage"
	claimstageservice "claimdesk/internal/claimstage/service"
	claimstagestore "claimdesk/internal/claimstage/store"
	"claimdesk/internal/narrative"
	narrservice "claimdesk/internal/narrative/service"
	narrstore "claimdesk/internal/narrative/store"
	"claimdesk/internal/platform/config"
	"claimdesk/internal/platform/httpserver"
	"claimdesk/internal/platform/logger"
	"claimdesk/internal/platform/metrics"
	"claimdesk/internal/platform/middleware"
	platformredis "claimdesk/internal/platform/redis"
	"claimdesk/internal/workflow"
	wfcache "claimdesk/internal/workflow/cache"
	wfservice "claimdesk/internal/workflow/service"
	wfstore "claimdesk/internal/workflow/store"
)

// main wires storage, services, and transport. Business logic lives in the
// internal service packages; this file only chooses implementations from
// configuration and owns the process lifecycle.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("using postgres storage")
	} else {
		log.Info("no database configured, using in-memory storage")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("resolver cache enabled")
	}

	// Audit trail. Events flow through an in-process inbox so request
	// handling never blocks on the sink.
	var auditStore audit.Store
	if db != nil {
		auditStore = audit.NewPostgresStore(db)
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	inbox := make(chan audit.Event, 256)
	publisher := audit.NewChannelPublisher(inbox)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		_ = audit.NewWorker(auditStore, inbox, log).Run(auditCtx)
	}()

	// Workflow catalog and resolver.
	wfOpts := []wfservice.Option{
		wfservice.WithLogger(log),
		wfservice.WithMetrics(m),
		wfservice.WithAuditPublisher(publisher),
	}
	var wfSvc *workflow.Service
	if db != nil {
		wfOpts = append(wfOpts, wfservice.WithTx(newWorkflowPostgresTx(db)))
		if redisClient != nil {
			wfOpts = append(wfOpts, wfservice.WithCache(wfcache.NewRedis(redisClient, cfg.Redis.DefaultTTL, log)))
		}
		wfSvc = workflow.NewService(wfstore.NewPostgres(db), wfOpts...)
	} else {
		wfSvc = workflow.NewService(wfstore.NewMemory(), wfOpts...)
	}

	// Per-claim stage tracking, backed by the catalog for stage definitions.
	csOpts := []claimstageservice.Option{
		claimstageservice.WithLogger(log),
		claimstageservice.WithMetrics(m),
		claimstageservice.WithAuditPublisher(publisher),
	}
	var csSvc *claimstage.Service
	if db != nil {
		csSvc = claimstage.NewService(claimstagestore.NewPostgres(db), wfSvc, csOpts...)
	} else {
		csSvc = claimstage.NewService(claimstagestore.NewMemory(), wfSvc, csOpts...)
	}

	// Description version history.
	narrOpts := []narrservice.Option{
		narrservice.WithLogger(log),
		narrservice.WithMetrics(m),
		narrservice.WithAuditPublisher(publisher),
	}
	var narrSvc *narrative.Service
	if db != nil {
		narrOpts = append(narrOpts, narrservice.WithTx(newNarrativePostgresTx(db)))
		narrSvc = narrative.NewService(narrstore.NewPostgres(db), narrOpts...)
	} else {
		narrSvc = narrative.NewService(narrstore.NewMemory(), narrOpts...)
	}

	// Claim lifecycle, orchestrating the three services above.
	claimOpts := []claimservice.Option{
		claimservice.WithLogger(log),
		claimservice.WithMetrics(m),
		claimservice.WithAuditPublisher(publisher),
		claimservice.WithStageInitializer(csSvc),
		claimservice.WithNarrativeSeeder(narrSvc),
	}
	var claimSvc *claim.Service
	if db != nil {
		claimOpts = append(claimOpts, claimservice.WithProvenances(claimstore.NewPostgresProvenances(db)))
		store := claimstore.NewPostgres(db)
		codegen := claim.NewCodeGenerator(claimstore.NewPostgresCounters(db), store, m)
		claimSvc = claim.NewService(store, wfSvc, codegen, claimOpts...)
	} else {
		claimOpts = append(claimOpts, claimservice.WithProvenances(claimstore.NewMemoryProvenances()))
		store := claimstore.NewMemory()
		codegen := claim.NewCodeGenerator(claimstore.NewMemoryCounters(), store, m)
		claimSvc = claim.NewService(store, wfSvc, codegen, claimOpts...)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Actor)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Mount("/workflows", workflow.NewHandler(wfSvc).Routes())
		r.Mount("/claims", claim.NewHandler(claimSvc).Routes(func(r chi.Router) {
			r.Mount("/stages", claimstage.NewHandler(csSvc).Routes())
			r.Mount("/versions", narrative.NewHandler(narrSvc).Routes())
		}))
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting claimdesk", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	// Stop the audit worker after the server so in-flight requests still get
	// their trail entries persisted.
	stopAudit()
	<-auditDone

	log.Info("shutdown complete")
}
