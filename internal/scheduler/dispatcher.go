package scheduler

import (
	"context"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// ScheduleDispatcher drives the contact-schedule evaluation loop.
type ScheduleDispatcher interface {
	DispatchDue(ctx context.Context) (int, error)
}

// Dispatcher ticks the schedule evaluator. Multiple instances may run at
// once; the engine's compare-and-set advance makes overlap harmless.
type Dispatcher struct {
	svc      ScheduleDispatcher
	log      *logger.Logger
	interval time.Duration
}

func NewDispatcher(cfg config.SchedulerConfig, svc ScheduleDispatcher, log *logger.Logger) *Dispatcher {
	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{svc: svc, log: log, interval: interval}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.svc == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		advanced, err := d.svc.DispatchDue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("dispatch tick failed", "error", err)
			continue
		}
		if advanced > 0 {
			d.log.Info("dispatch tick", "schedules_advanced", advanced)
		}
	}
}
