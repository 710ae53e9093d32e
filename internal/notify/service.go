package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Service tells the owner and the emergency contacts that evidence has
// been secured in the cloud.
type Service struct {
	email      EmailSender
	ownerEmail string
	logger     *logging.Logger
	location   *time.Location
}

// NewService creates a notification service. ownerEmail may be empty.
func NewService(email EmailSender, ownerEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		ownerEmail: strings.TrimSpace(ownerEmail),
		logger:     logger,
		location:   time.UTC,
	}
}

// NotifyEvidenceSecured emails the owner and every contact. Every
// recipient is attempted; failures are joined into the returned error.
func (s *Service) NotifyEvidenceSecured(ctx context.Context, item evidence.Item, location string, contacts []settings.Contact) error {
	if s == nil || s.email == nil {
		return nil
	}

	captured := time.UnixMilli(item.Timestamp).In(s.location).Format("January 2, 2006 at 15:04 MST")
	threat := "UNKNOWN"
	sceneContext := ""
	if item.Analysis != nil {
		threat = string(item.Analysis.ThreatLevel)
		sceneContext = item.Analysis.LocationContext
	}
	position := "not available"
	mapsLink := ""
	if item.HasLocation() {
		position = fmt.Sprintf("%.5f, %.5f", *item.Latitude, *item.Longitude)
		mapsLink = fmt.Sprintf("https://maps.google.com/?q=%.5f,%.5f", *item.Latitude, *item.Longitude)
	}

	subject := fmt.Sprintf("GuardianAI alert: evidence secured (%s threat)", threat)
	body := fmt.Sprintf(`A GuardianAI device captured evidence and secured it in the cloud.

Captured: %s
Trigger: %s
Threat level: %s
Position: %s%s
Scene: %s
Cloud copy: %s
`, captured, item.TriggerType, threat, position, prefixed("\nMap: ", mapsLink), orDash(sceneContext), orDash(location))

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #ef4444;">GuardianAI alert</h2>
<p>Evidence was captured and secured in the cloud.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px;"><strong>Captured:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Trigger:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Threat level:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Position:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Scene:</strong></td><td style="padding: 8px;">%s</td></tr>
</table>
</div>`,
		html.EscapeString(captured), html.EscapeString(string(item.TriggerType)), html.EscapeString(threat),
		html.EscapeString(position), html.EscapeString(orDash(sceneContext)))

	type recipient struct{ email, name string }
	recipients := make([]recipient, 0, len(contacts)+1)
	if s.ownerEmail != "" {
		recipients = append(recipients, recipient{email: s.ownerEmail, name: "Owner"})
	}
	for _, c := range contacts {
		if strings.TrimSpace(c.Email) == "" {
			continue
		}
		recipients = append(recipients, recipient{email: c.Email, name: c.Name})
	}

	var errs []error
	for _, r := range recipients {
		alert := Alert{
			To:         r.email,
			ToName:     r.name,
			Subject:    subject,
			Text:       body,
			HTML:       htmlBody,
			EvidenceID: item.ID,
		}
		if item.Analysis != nil {
			alert.Threat = item.Analysis.ThreatLevel
		}
		if err := s.email.SendAlert(ctx, alert); err != nil {
			s.logger.Error("notify: failed to send alert", "error", err, "to", r.email, "evidence_id", item.ID)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: alert sent", "to", r.email, "evidence_id", item.ID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d alerts failed: %w", len(errs), len(recipients), errors.Join(errs...))
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func prefixed(prefix, s string) string {
	if s == "" {
		return ""
	}
	return prefix + s
}
