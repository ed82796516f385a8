// The identity service owns accounts and sessions. It exposes the public
// register/login/refresh endpoints plus the admin account management API,
// and runs the outbox relay that publishes identity events to the broker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"idplane/internal/events"
	identityhandler "idplane/internal/identity/handler"
	"idplane/internal/identity/hasher"
	identityservice "idplane/internal/identity/service"
	identitystore "idplane/internal/identity/store"
	identitypg "idplane/internal/identity/store/postgres"
	"idplane/internal/jwtauth"
	"idplane/internal/outbox"
	outboxmetrics "idplane/internal/outbox/metrics"
	outboxpg "idplane/internal/outbox/store/postgres"
	"idplane/internal/outbox/worker"
	"idplane/internal/platform/config"
	"idplane/internal/platform/kafka/producer"
	"idplane/internal/platform/logger"
	"idplane/internal/platform/metrics"
	"idplane/internal/platform/middleware"
	"idplane/internal/platform/postgres"
	"idplane/internal/platform/redis"
	"idplane/internal/profile/cache"
	"idplane/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	log.Info("initializing identity service", "addr", cfg.HTTP.Addr)

	db, err := postgres.Open(cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	// Without Postgres the service runs entirely in memory. Useful for local
	// development, useless for anything else.
	var (
		users      identitystore.UserStore
		outboxSt   outbox.Store
		transactor tx.Transactor
	)
	if db != nil {
		users = identitypg.New(db)
		outboxSt = outboxpg.New(db)
		transactor = tx.NewSQLTransactor(db)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores")
		users = identitystore.NewMemory()
		outboxSt = outbox.NewMemoryStore()
		transactor = tx.NoopTransactor{}
	}

	tokens, err := jwtauth.New(jwtauth.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		log.Error("jwt configuration invalid", "error", err)
		os.Exit(1)
	}

	opts := []identityservice.Option{
		identityservice.WithTokenVerifier(tokens),
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		profileCache := cache.New(redisClient, log, cache.WithTTL(cfg.Cache.ProfileTTL), cache.WithMetrics(m))
		opts = append(opts, identityservice.WithCacheInvalidator(profileCache))
	}

	var bus *events.Bus
	var kafkaProd *producer.Producer
	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
		kafkaProd = prod
		bus = events.NewBus(prod, log)
	} else {
		log.Warn("KAFKA_BROKERS not set, events stay in the outbox")
		bus = events.NewBus(producer.NewNoopProducer(log), log)
	}

	relay := worker.New(outboxSt, bus,
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithPollInterval(cfg.Outbox.PollInterval),
		worker.WithMetrics(outboxmetrics.New()),
		worker.WithLogger(log),
	)
	relay.Start()

	svc := identityservice.New(users, outboxSt, transactor, hasher.NewBcrypt(0), tokens, opts...)
	h := identityhandler.New(svc)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))
	router.Use(middleware.Metadata(middleware.MetadataConfig{}))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)

	router.Group(func(r chi.Router) {
		h.RegisterPublicRoutes(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(tokens))
		r.Use(middleware.RequireRole("ADMIN"))
		h.RegisterAdminRoutes(r)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		if kafkaProd != nil && !kafkaProd.Healthy(r.Context()) {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := relay.UpdateMetrics(gctx); err != nil {
					log.Warn("outbox metrics update failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		if err := relay.Stop(shutdownCtx); err != nil {
			log.Error("outbox relay shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}
