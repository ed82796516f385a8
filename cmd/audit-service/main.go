// The audit service consumes audit.event messages into the append-only log
// and serves the admin query API over it. Messages failing validation are
// dropped; messages failing on infrastructure are retried and eventually
// dead-lettered.
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

	auditconsumer "idplane/internal/audit/consumer"
	audithandler "idplane/internal/audit/handler"
	auditservice "idplane/internal/audit/service"
	auditstore "idplane/internal/audit/store"
	auditpg "idplane/internal/audit/store/postgres"
	"idplane/internal/events"
	"idplane/internal/jwtauth"
	"idplane/internal/platform/config"
	"idplane/internal/platform/kafka"
	"idplane/internal/platform/kafka/consumer"
	"idplane/internal/platform/kafka/producer"
	"idplane/internal/platform/logger"
	"idplane/internal/platform/metrics"
	"idplane/internal/platform/middleware"
	"idplane/internal/platform/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	log.Info("initializing audit service", "addr", cfg.HTTP.Addr)

	db, err := postgres.Open(cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	var records auditstore.RecordStore
	if db != nil {
		records = auditpg.New(db)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory store")
		records = auditstore.NewMemory()
	}

	var sink *consumer.Consumer
	if cfg.Kafka.Brokers != "" {
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "audit-service"
		}

		dlqProducer, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		defer dlqProducer.Close()

		handler := auditconsumer.NewHandler(records, log, m)
		sink, err = consumer.New(consumer.Config{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         groupID,
			AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		}, handler, log,
			consumer.WithRetry(3, 200*time.Millisecond),
			consumer.WithDeadLetter(dlqProducer, events.TopicAuditEventDLQ),
			consumer.WithDeadLetterCallback(m.IncrementAuditDeadLettered),
		)
		if err != nil {
			log.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}

		sink.Subscribe([]string{events.TopicAuditEvent})
		if err := sink.Start(); err != nil {
			log.Error("kafka consumer start failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("KAFKA_BROKERS not set, audit sink disabled; serving queries only")
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

	svc := auditservice.New(records, log)
	h := audithandler.New(svc)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))
	router.Use(middleware.Timeout(30 * time.Second))

	router.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(tokens))
		r.Use(middleware.RequireRole("ADMIN"))
		h.RegisterRoutes(r)
	})

	var brokerCheck *kafka.HealthChecker
	if cfg.Kafka.Brokers != "" {
		brokerCheck = kafka.NewHealthChecker(cfg.Kafka.Brokers)
	}

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		if brokerCheck != nil {
			if err := brokerCheck.Check(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		if sink != nil && !sink.Healthy(r.Context()) {
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
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		if sink != nil {
			if err := sink.Stop(shutdownCtx); err != nil {
				log.Error("consumer shutdown failed", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}
