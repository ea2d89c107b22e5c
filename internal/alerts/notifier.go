// Package alerts delivers operator email alerts for conditions the engine
// detects but cannot repair, such as schedule/job integrity violations.
package alerts

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// Notifier sends alert emails over SMTP. A nil *Notifier is a valid no-op
// notifier, so callers never have to branch on whether alerting is enabled.
type Notifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
	log      *logger.Logger
}

// NewNotifier creates an SMTP-backed notifier, or nil when alerting is
// disabled in configuration.
func NewNotifier(cfg config.AlertsConfig, log *logger.Logger) *Notifier {
	if !cfg.GetAlertsEnabled() {
		log.Info("email alerts disabled")
		return nil
	}

	return &Notifier{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		username: cfg.GetSMTPUsername(),
		password: cfg.GetSMTPPassword(),
		from:     cfg.GetAlertsFromAddress(),
		to:       cfg.GetAlertsToAddress(),
		log:      log,
	}
}

// IntegrityViolation alerts the operator about a lead whose scheduling state
// contradicts itself. Delivery failures are logged, never propagated: the
// engine must not stall on a broken mail server.
func (n *Notifier) IntegrityViolation(ctx context.Context, leadID uuid.UUID, detail string) {
	if n == nil {
		return
	}

	content, err := renderAlertTemplate("integrity_alert.html", integrityAlertData{
		LeadID:     leadID.String(),
		Detail:     detail,
		DetectedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		n.log.Error("render integrity alert", "error", err, "leadId", leadID)
		return
	}

	subject := fmt.Sprintf("[outreach] integrity violation for lead %s", leadID)
	if err := n.send(ctx, subject, content); err != nil {
		n.log.Error("send integrity alert", "error", err, "leadId", leadID)
	}
}

func (n *Notifier) send(ctx context.Context, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("alert from: %w", err)
	}
	if err := msg.To(n.to); err != nil {
		return fmt.Errorf("alert to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(n.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if n.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.username),
			gomail.WithPassword(n.password),
		)
	}

	client, err := gomail.NewClient(n.host, opts...)
	if err != nil {
		return fmt.Errorf("alert smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("alert smtp send: %w", err)
	}

	return nil
}

var _ service.AlertNotifier = (*Notifier)(nil)
