package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go/amount"

	"regbridge/internal/approval"
	approvalhandler "regbridge/internal/approval/handler"
	approvalmetrics "regbridge/internal/approval/metrics"
	"regbridge/internal/audit"
	"regbridge/internal/compliance"
	"regbridge/internal/ledger"
	"regbridge/internal/platform/config"
	"regbridge/internal/platform/httpserver"
	"regbridge/internal/platform/logger"
	"regbridge/internal/platform/metrics"
	"regbridge/internal/platform/middleware"
	platformredis "regbridge/internal/platform/redis"
	"regbridge/internal/registry"
	"regbridge/internal/rules"
	"regbridge/internal/sandwich"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal feature packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		// Fail fast: a misconfigured issuer credential must never be
		// discovered one request at a time.
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store registry.Store
	if cfg.PostgresDSN != "" {
		pg, err := registry.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres init failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("postgres schema failed", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("POSTGRES_DSN not set, using empty in-memory account registry")
		store = registry.NewMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = registry.NewCachedStore(store, redisClient.Client, config.RegistryCacheTTL, log)
	}

	var engine rules.Engine
	if cfg.RulesEngineURL != "" {
		engine = rules.NewHTTP(cfg.RulesEngineURL, cfg.RulesEngineTimeout)
	} else {
		// Stand-in consultation with real-world latency.
		engine = rules.Stub{Latency: 1300 * time.Millisecond}
	}

	auditSinks := audit.Fanout{audit.NewPublisher(audit.NewMemoryStore())}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaSink.Close(flushCtx)
		}()
		auditSinks = append(auditSinks, kafkaSink)
	}

	evaluator := compliance.NewEvaluator(cfg.AmountLimit, store, engine)
	builder := sandwich.New(cfg.Issuer, cfg.NetworkPassphrase, cfg.TxTimeout)
	hz := ledger.NewHorizon(cfg.HorizonURL)

	appMetrics := metrics.New()
	service := approval.NewService(evaluator, hz, builder, auditSinks, log, approvalmetrics.New())
	handler := approvalhandler.New(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(appMetrics.Track)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWTSigningKey, log))
		handler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting regbridge",
		"addr", cfg.Addr,
		"network", cfg.NetworkPassphrase,
		"issuer", cfg.Issuer.Address(),
		"amount_limit", amount.String(cfg.AmountLimit),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
