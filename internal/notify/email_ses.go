package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/guardian-ai/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers alerts through SES v2.
type SESSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil without a client or sender address.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SESSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SESSender) SendAlert(ctx context.Context, a Alert) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	output, err := s.client.SendEmail(ctx, s.alertInput(a))
	if err != nil {
		s.logger.Error("SES alert failed", "error", err, "to", a.To, "evidence_id", a.EvidenceID)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}
	s.logger.Info("alert sent via SES", "to", a.To, "evidence_id", a.EvidenceID, "message_id", aws.ToString(output.MessageId))
	return nil
}

func (s *SESSender) alertInput(a Alert) *sesv2.SendEmailInput {
	body := &types.Body{}
	if a.Text != "" {
		body.Text = utf8Content(a.Text)
	}
	if a.HTML != "" {
		body.Html = utf8Content(a.HTML)
	}

	// SES tag values only allow [A-Za-z0-9_.-]; evidence ids and threat
	// levels already fit.
	tags := []types.MessageTag{{Name: aws.String("category"), Value: aws.String(AlertCategory)}}
	if a.EvidenceID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("evidence_id"), Value: aws.String(a.EvidenceID)})
	}
	if a.Threat != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("threat"), Value: aws.String(string(a.Threat))})
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{a.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(a.Subject),
				Body:    body,
			},
		},
		EmailTags: tags,
	}
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
