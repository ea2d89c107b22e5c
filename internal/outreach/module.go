// Package outreach provides the outbound-contact scheduling and dispatch module.
package outreach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/logger"
)

// Module represents the outreach domain module. It has no HTTP surface of its
// own; schedule and attempt views are exposed through the leads API, and the
// vendor callbacks through the webhook module.
type Module struct {
	Service    *service.Service
	Repository *repository.Repository
	log        *logger.Logger
}

// NewModule creates a new outreach module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, leads service.LeadReader, writer service.LeadWriter, dialer service.Dialer, alerts service.AlertNotifier, log *logger.Logger, cfg service.Config) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, writer, dialer, alerts, log, cfg)

	return &Module{
		Service:    svc,
		Repository: repo,
		log:        log,
	}
}

// RegisterHandlers subscribes to the lead lifecycle events that drive the
// contact schedule.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadDoNotCallSet{}.EventName(), m)
	bus.Subscribe(events.LeadDeleted{}.EventName(), m)

	m.log.Info("outreach module registered event handlers")
}

// Handle routes events to the appropriate schedule operation.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		if e.DoNotCall {
			return nil
		}
		return m.Service.StartOutreach(ctx, e.LeadID, e.State)
	case events.LeadDoNotCallSet:
		return m.Service.DeactivateForLead(ctx, e.LeadID, domain.ReasonDoNotCall)
	case events.LeadDeleted:
		return m.Service.DeactivateForLead(ctx, e.LeadID, domain.ReasonLeadDeleted)
	default:
		return fmt.Errorf("outreach module received unexpected event %q", event.EventName())
	}
}

var (
	_ events.Handler = (*Module)(nil)
	_ service.Store  = (*repository.Repository)(nil)
)
