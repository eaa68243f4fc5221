// Command authsvc runs the auth side of the registration saga: the public
// registration endpoints, the identity provider integration, and the
// consumer that finalizes identities when the profile side reports back.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mentora/internal/audit"
	"mentora/internal/dedupe"
	"mentora/internal/identity"
	"mentora/internal/identity/keycloak"
	identitymemory "mentora/internal/identity/memory"
	"mentora/internal/messaging"
	"mentora/internal/platform/config"
	"mentora/internal/platform/httpserver"
	"mentora/internal/platform/logger"
	platformredis "mentora/internal/platform/redis"
	"mentora/internal/registration"
	"mentora/internal/registration/handler"
)

const dedupeTTL = time.Hour

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("authsvc exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New("authsvc")

	identities := newIdentityProvider(cfg, log)

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

	tokens := registration.NewTokenService(cfg.Token.SigningKey, cfg.Token.StatusTTL)
	pending := registration.NewPendingLedger()
	service := registration.NewService(identities, publisher, tokens, pending, audits, log)

	router := messaging.NewRouter(log)
	registration.NewEventHandlers(service, markers, log).Register(router)

	consumer := messaging.NewConsumer(provider, cfg.RabbitMQ, messaging.AuthQueue(), router, log)
	if err := consumer.Initialize(ctx); err != nil {
		return err
	}
	defer consumer.Close()

	dlqSink := messaging.NewDeadLetterSink(provider, cfg.RabbitMQ, messaging.AuthQueue(), log)
	dlqSink.OnDeadLetter(func(eventType, eventID, correlationID string) {
		audits.Emit(audit.Event{
			CorrelationID: correlationID,
			Action:        audit.ActionMessageDeadLettered,
			Detail:        eventType,
		})
	})
	defer dlqSink.Close()

	sweeper := registration.NewSweeper(pending, identities, audits, cfg.Sweeper.Interval, cfg.Sweeper.MaxAge, log)

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	handler.New(service, log).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.HTTPAddr, mux)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return consumer.Run(ctx) })
	group.Go(func() error { return dlqSink.Run(ctx) })
	group.Go(func() error { return sweeper.Run(ctx) })
	group.Go(func() error { return auditWorker.Run(ctx) })
	group.Go(func() error {
		log.Info("authsvc listening", "addr", cfg.HTTPAddr)
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

// newIdentityProvider picks Keycloak when configured and falls back to the
// in-memory provider for local development.
func newIdentityProvider(cfg config.Config, log *slog.Logger) identity.Provider {
	if cfg.Keycloak.BaseURL != "" {
		return keycloak.New(cfg.Keycloak, log)
	}
	log.Warn("KEYCLOAK_URL not set, using in-memory identity provider")
	return identitymemory.New()
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

// newAuditStore fans the trail out to Kafka when brokers are configured.
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
