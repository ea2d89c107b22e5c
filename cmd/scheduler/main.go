package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"outreach_backend/internal/alerts"
	"outreach_backend/internal/events"
	"outreach_backend/internal/leads"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/voice"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var dialer service.Dialer
	if client := voice.NewClient(cfg, log); client != nil {
		dialer = client
	} else {
		log.Warn("voice vendor not configured; outbound calls disabled")
	}

	var alertNotifier service.AlertNotifier
	if notifier := alerts.NewNotifier(cfg, log); notifier != nil {
		alertNotifier = notifier
	}

	policy := domain.Policy{
		SafeHours:               cfg.GetSafeCallHours(),
		SameBlockDelay:          cfg.GetSameBlockDelay(),
		SameBlockMaxRetries:     cfg.GetSameBlockMaxRetries(),
		NextDayStartHour:        cfg.GetNextDayStartHour(),
		AnswerDurationThreshold: cfg.GetAnswerDurationThreshold(),
	}

	leadsModule := leads.NewModule(pool, cfg, eventBus, val, log)
	outreachModule := outreach.NewModule(pool, leadsModule.Repository(), leadsModule.Service(), dialer, alertNotifier, log, service.Config{
		Policy:            policy,
		DefaultTimezone:   cfg.GetDefaultTimezone(),
		ExecutionLease:    cfg.GetExecutionLease(),
		DispatchBatchSize: cfg.GetDispatchBatchSize(),
		JobBatchSize:      cfg.GetJobBatchSize(),
	})
	outreachModule.RegisterHandlers(eventBus)

	group, groupCtx := errgroup.WithContext(ctx)

	// The dispatcher advances due schedules and executes in-window jobs even
	// when the queue is down, so it always runs.
	dispatcher := scheduler.NewDispatcher(cfg, outreachModule.Service, log)
	group.Go(func() error {
		dispatcher.Run(groupCtx)
		return nil
	})

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running dispatcher only")
	} else {
		poller, err := scheduler.NewJobPoller(cfg, cfg, outreachModule.Repository, log)
		if err != nil {
			log.Error("failed to initialize job poller", "error", err)
			panic("failed to initialize job poller: " + err.Error())
		}
		defer func() { _ = poller.Close() }()
		group.Go(func() error {
			poller.Run(groupCtx)
			return nil
		})

		worker, err := scheduler.NewWorker(cfg, outreachModule.Service, log)
		if err != nil {
			log.Error("failed to initialize scheduler worker", "error", err)
			panic("failed to initialize scheduler worker: " + err.Error())
		}
		group.Go(func() error {
			worker.Run(groupCtx)
			return nil
		})
	}

	_ = group.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
