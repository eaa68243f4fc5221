// Command profilesvc runs the profile side of the registration saga: it
// projects initiated registrations into the profile store, reports the
// outcome back, and exposes the educator promotion endpoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mentora/internal/audit"
	"mentora/internal/dedupe"
	"mentora/internal/messaging"
	"mentora/internal/platform/config"
	"mentora/internal/platform/httpserver"
	"mentora/internal/platform/logger"
	platformredis "mentora/internal/platform/redis"
	"mentora/internal/profile"
	"mentora/internal/profile/handler"
)

const dedupeTTL = time.Hour

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("profilesvc exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New("profilesvc")

	store, closeStore, err := newProfileStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	provider := messaging.NewConnectionProvider(cfg.RabbitMQ, log)
	if err := provider.Connect(ctx); err != nil {
		return err
	}
	defer provider.Close()

	publisher := messaging.NewPublisher(provider, cfg.RabbitMQ, log)
	if err := publisher.Initialize(ctx); err != nil {
		return err
	}
	defer publisher.Close()

	markers, err := newDedupeStore(cfg)
	if err != nil {
		return err
	}

	auditStore, closeAudit, err := newAuditStore(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()
	audits := audit.NewPublisher(log)
	auditWorker := audit.NewWorker(auditStore, audits.Inbox(), log)

	projector := profile.NewProjector(store, publisher, markers, audits, log)

	router := messaging.NewRouter(log)
	projector.RegisterHandlers(router)

	consumer := messaging.NewConsumer(provider, cfg.RabbitMQ, messaging.ProfileQueue(), router, log)
	if err := consumer.Initialize(ctx); err != nil {
		return err
	}
	defer consumer.Close()

	dlqSink := messaging.NewDeadLetterSink(provider, cfg.RabbitMQ, messaging.ProfileQueue(), log)
	dlqSink.OnDeadLetter(func(eventType, eventID, correlationID string) {
		audits.Emit(audit.Event{
			CorrelationID: correlationID,
			Action:        audit.ActionMessageDeadLettered,
			Detail:        eventType,
		})
	})
	defer dlqSink.Close()

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	handler.New(projector, log).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.HTTPAddr, mux)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return consumer.Run(ctx) })
	group.Go(func() error { return dlqSink.Run(ctx) })
	group.Go(func() error { return auditWorker.Run(ctx) })
	group.Go(func() error {
		log.Info("profilesvc listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// newProfileStore picks Postgres when configured and falls back to the
// in-memory store for local development.
func newProfileStore(ctx context.Context, cfg config.Config, log *slog.Logger) (profile.Store, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Warn("POSTGRES_URL not set, using in-memory profile store")
		return profile.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if _, err := pool.Exec(ctx, profile.Schema); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return profile.NewPostgresStore(pool), pool.Close, nil
}

func newDedupeStore(cfg config.Config) (dedupe.Store, error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return dedupe.NewMemoryStore(dedupeTTL), nil
	}
	return dedupe.NewRedisStore(client, dedupeTTL), nil
}

func newAuditStore(cfg config.Config) (audit.Store, func(), error) {
	memory := audit.NewMemoryStore()
	if len(cfg.Kafka.Brokers) == 0 {
		return memory, func() {}, nil
	}
	sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	return audit.NewFanout(memory, sink), sink.Close, nil
}
