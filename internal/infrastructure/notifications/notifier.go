// Package notifications delivers cache health alerts to operators by email.
package notifications

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/resendlabs/resend-go"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/monitoring"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// Mailer defines the interface for sending alert emails, allowing for mock
// implementations in tests.
type Mailer interface {
	SendAlertEmail(alert monitoring.Alert) error
}

// ResendMailer is the concrete Mailer using the Resend API.
type ResendMailer struct {
	client    *resend.Client
	fromEmail string
	toEmail   string
}

// NewMailer creates the Resend-backed mailer.
func NewMailer() (Mailer, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	toEmail := config.AlertMailTo
	if toEmail == "" {
		return nil, fmt.Errorf("INKWELL_ALERT_MAIL_TO environment variable is required")
	}

	return &ResendMailer{
		client:    resend.NewClient(apiKey),
		fromEmail: config.AlertMailFrom,
		toEmail:   toEmail,
	}, nil
}

// SendAlertEmail composes and sends one alert notification.
func (m *ResendMailer) SendAlertEmail(alert monitoring.Alert) error {
	subject := fmt.Sprintf("[Inkwell %s] %s on %s tier",
		alert.Severity, alert.Category, alert.Tier)

	html := fmt.Sprintf(
		"<h2>Cache health alert</h2>"+
			"<p><strong>%s</strong></p>"+
			"<ul>"+
			"<li>Severity: %s</li>"+
			"<li>Tier: %s</li>"+
			"<li>Current value: %.3f</li>"+
			"<li>Threshold: %.3f</li>"+
			"<li>Raised: %s</li>"+
			"</ul>",
		alert.Message, alert.Severity, alert.Tier,
		alert.CurrentValue, alert.Threshold,
		alert.Timestamp.UTC().Format(time.RFC3339))

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Inkwell Alerts <%s>", m.fromEmail),
		To:      []string{m.toEmail},
		Subject: subject,
		Html:    html,
	}

	if _, err := m.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send alert email via Resend: %w", err)
	}
	return nil
}

// AlertNotifier sits between the cache monitor and the mailer, suppressing
// repeat mail for the same tier and category inside the cooldown window.
type AlertNotifier struct {
	mailer   Mailer
	logger   *logging.ChanneledLogger
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewAlertNotifier wires a mailer with the configured cooldown.
func NewAlertNotifier(mailer Mailer, logger *logging.ChanneledLogger) *AlertNotifier {
	return &AlertNotifier{
		mailer:   mailer,
		logger:   logger,
		cooldown: config.AlertMailCooldown,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Notify is registered as a monitor alert callback.
func (n *AlertNotifier) Notify(alert monitoring.Alert) {
	if alert.Severity == monitoring.AlertInfo {
		return
	}

	key := alert.Tier + ":" + string(alert.Category)

	n.mu.Lock()
	last, seen := n.lastSent[key]
	now := n.now()
	if seen && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		n.logger.Alert().Debug("Alert mail suppressed by cooldown",
			"tier", alert.Tier, "category", string(alert.Category))
		return
	}
	n.lastSent[key] = now
	n.mu.Unlock()

	if err := n.mailer.SendAlertEmail(alert); err != nil {
		n.logger.Alert().Error("Failed to send alert mail",
			"tier", alert.Tier, "category", string(alert.Category), "error", err.Error())
		return
	}

	n.logger.Alert().Info("Alert mail sent",
		"tier", alert.Tier, "category", string(alert.Category),
		"severity", string(alert.Severity))
}
