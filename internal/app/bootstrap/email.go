package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/internal/notify"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// BuildEmailSender selects the summary email provider. With the auto provider
// SES is only considered outside development, where AWS credentials exist.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	var sesClient *sesv2.Client
	useSES := cfg.EmailProvider == notify.ProviderSES ||
		(cfg.EmailProvider == notify.ProviderAuto && cfg.Env != "development")
	if awsCfg != nil && useSES {
		sesClient = sesv2.NewFromConfig(*awsCfg)
	}
	sender, err := notify.NewEmailSender(notify.SenderOptions{
		Provider: cfg.EmailProvider,
		SendGrid: notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		},
		SES: notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		},
		SESClient: sesClient,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build email sender: %w", err)
	}
	return sender, nil
}
