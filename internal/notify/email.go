package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// DefaultFromName signs alert emails when no sender name is configured.
const DefaultFromName = "GuardianAI"

// AlertCategory tags every alert so providers can report on delivery.
const AlertCategory = "evidence-secured"

// Alert is one email telling a recipient that evidence was secured.
type Alert struct {
	To         string
	ToName     string
	Subject    string
	Text       string
	HTML       string
	EvidenceID string
	Threat     evidence.ThreatLevel
}

// Urgent alerts are flagged high priority by the mail client.
func (a Alert) Urgent() bool {
	return a.Threat == evidence.ThreatHigh
}

// EmailSender delivers alerts.
type EmailSender interface {
	SendAlert(ctx context.Context, a Alert) error
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers alerts through the SendGrid v3 API.
type SendGridSender struct {
	client    sendGridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), cfg, logger)
}

func newSendGridSender(client sendGridAPI, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SendGridSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) SendAlert(ctx context.Context, a Alert) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	message := sendGridAlert(mail.NewEmail(s.fromName, s.fromEmail), a)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid alert failed", "error", err, "to", a.To, "evidence_id", a.EvidenceID)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected alert", "status", response.StatusCode, "body", response.Body, "to", a.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	s.logger.Info("alert sent via sendgrid", "to", a.To, "evidence_id", a.EvidenceID, "status", response.StatusCode)
	return nil
}

// sendGridAlert builds a single-recipient message carrying the evidence id
// as a custom arg so delivery webhooks can be matched back to the item.
func sendGridAlert(from *mail.Email, a Alert) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = a.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(a.ToName, a.To))
	if a.EvidenceID != "" {
		p.SetCustomArg("evidence_id", a.EvidenceID)
	}
	m.AddPersonalizations(p)

	text := a.Text
	if text == "" {
		text = a.Subject
	}
	m.AddContent(mail.NewContent("text/plain", text))
	if a.HTML != "" {
		m.AddContent(mail.NewContent("text/html", a.HTML))
	}
	m.AddCategories(AlertCategory)
	if a.Urgent() {
		m.SetHeader("X-Priority", "1")
		m.SetHeader("Importance", "high")
	}
	return m
}

// StubEmailSender logs alerts instead of sending them.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) SendAlert(ctx context.Context, a Alert) error {
	s.logger.Info("stub email sender: alert not delivered", "to", a.To, "evidence_id", a.EvidenceID, "threat", a.Threat)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
