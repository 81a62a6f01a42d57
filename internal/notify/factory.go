package notify

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// Email providers accepted by NewEmailSender.
const (
	ProviderAuto     = "auto"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
	ProviderStub     = "stub"
)

// SenderOptions selects and configures an email provider.
type SenderOptions struct {
	Provider string
	SendGrid SendGridConfig
	SES      SESConfig
	// SESClient is required for the ses provider and optional for auto.
	SESClient *sesv2.Client
}

// NewEmailSender picks a sender for opts.Provider. "auto" prefers SendGrid,
// then SES, then the stub.
func NewEmailSender(opts SenderOptions, logger *logging.Logger) (EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderAuto
	}

	switch provider {
	case ProviderSendGrid:
		if s := NewSendGridSender(opts.SendGrid, logger); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("notify: sendgrid selected but SENDGRID_API_KEY is empty")
	case ProviderSES:
		if s := NewSESSender(opts.SESClient, opts.SES, logger); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("notify: ses selected but no SES client is configured")
	case ProviderStub:
		return NewStubEmailSender(logger), nil
	case ProviderAuto:
		if s := NewSendGridSender(opts.SendGrid, logger); s != nil {
			logger.Info("email provider selected", "provider", ProviderSendGrid)
			return s, nil
		}
		if s := NewSESSender(opts.SESClient, opts.SES, logger); s != nil {
			logger.Info("email provider selected", "provider", ProviderSES)
			return s, nil
		}
		logger.Warn("no email provider configured; summaries will only be logged")
		return NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown email provider %q", opts.Provider)
	}
}
