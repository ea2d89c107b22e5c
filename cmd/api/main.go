package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/alerts"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/http/router"
	"outreach_backend/internal/leads"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/internal/voice"
	"outreach_backend/internal/webhook"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Voice vendor client; nil when the vendor is not configured, so the
	// engine records attempts as failed instead of placing calls.
	var dialer service.Dialer
	if client := voice.NewClient(cfg, log); client != nil {
		dialer = client
		log.Info("voice client initialized", "baseUrl", cfg.GetVoiceAPIBaseURL())
	} else {
		log.Warn("voice vendor not configured; outbound calls disabled")
	}

	var alertNotifier service.AlertNotifier
	if notifier := alerts.NewNotifier(cfg, log); notifier != nil {
		alertNotifier = notifier
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	policy := domain.Policy{
		SafeHours:               cfg.GetSafeCallHours(),
		SameBlockDelay:          cfg.GetSameBlockDelay(),
		SameBlockMaxRetries:     cfg.GetSameBlockMaxRetries(),
		NextDayStartHour:        cfg.GetNextDayStartHour(),
		AnswerDurationThreshold: cfg.GetAnswerDurationThreshold(),
	}

	leadsModule := leads.NewModule(pool, cfg, eventBus, val, log)

	// The outreach engine reads its lead projection through the leads
	// repository; lead-initiated changes come back over the event bus.
	outreachModule := outreach.NewModule(pool, leadsModule.Repository(), leadsModule.Service(), dialer, alertNotifier, log, service.Config{
		Policy:            policy,
		DefaultTimezone:   cfg.GetDefaultTimezone(),
		ExecutionLease:    cfg.GetExecutionLease(),
		DispatchBatchSize: cfg.GetDispatchBatchSize(),
		JobBatchSize:      cfg.GetJobBatchSize(),
	})
	outreachModule.RegisterHandlers(eventBus)

	// Lead detail, timeline and call history read through the outreach engine
	// (set after construction to break the circular dependency)
	leadsModule.SetOutreachViewer(outreachModule.Service)

	webhookModule := webhook.NewModule(cfg, outreachModule.Service, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	log.DatabaseError(name, lastErr)
	return errors.New(name + ": " + lastErr.Error())
}
