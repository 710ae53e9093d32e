package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/guardian-ai/internal/cloud"
	appconfig "github.com/wolfman30/guardian-ai/internal/config"
	"github.com/wolfman30/guardian-ai/internal/notify"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// BuildEmailSender picks SendGrid, then SES, then a logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		logger.Info("alert email via sendgrid")
		return sg
	}
	if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
		if ses := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); ses != nil {
			logger.Info("alert email via ses")
			return ses
		}
	}
	logger.Warn("no email provider configured; alerts are logged only")
	return notify.NewStubEmailSender(logger)
}

// BuildUploader returns the S3 evidence uploader when a bucket is set and
// the simulated one otherwise. Either way, secured items alert the owner
// and the emergency contacts.
func BuildUploader(cfg *appconfig.Config, awsCfg *aws.Config, email notify.EmailSender, logger *logging.Logger) (cloud.Uploader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var base cloud.Uploader
	if bucket := strings.TrimSpace(cfg.EvidenceBucket); bucket != "" && awsCfg != nil {
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		base = cloud.NewS3Uploader(client, bucket, logger)
		logger.Info("evidence backup to s3", "bucket", bucket)
	} else {
		base = cloud.NewSimulatedUploader(cfg.UploadLatency, logger)
		logger.Warn("no evidence bucket configured; using simulated cloud backup")
	}

	if email == nil {
		return base, nil
	}
	return cloud.NewNotifyingUploader(base, notify.NewService(email, cfg.OwnerEmail, logger), logger), nil
}
