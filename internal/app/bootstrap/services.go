package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// BuildEmailSender picks the EMAIL_PROVIDER sender, falling back to the stub
// when the provider is not fully configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=sendgrid without SENDGRID_API_KEY; using stub sender")
	case "ses":
		if awsCfg != nil && cfg.SESFromEmail != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("EMAIL_PROVIDER=ses without AWS config or SES_FROM_EMAIL; using stub sender")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildQueue returns the in-memory queue when USE_MEMORY_QUEUE is set, SQS otherwise.
func BuildQueue(cfg *appconfig.Config, awsCfg *aws.Config) (notify.Queue, error) {
	if cfg.UseMemoryQueue {
		return notify.NewMemoryQueue(0), nil
	}
	if cfg.NotifyQueueURL == "" {
		return nil, fmt.Errorf("bootstrap: NOTIFY_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: aws config is required for SQS")
	}
	return notify.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.NotifyQueueURL), nil
}

// BuildGateway returns Razorpay when keys are configured. The fake gateway is
// only returned when ALLOW_FAKE_PAYMENTS is set; its concrete type is returned
// too so the demo checkout page can be mounted.
func BuildGateway(cfg *appconfig.Config, logger *logging.Logger) (payments.Gateway, *payments.FakeGateway, error) {
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		return payments.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.ExternalCallTimeout, logger), nil, nil
	}
	if cfg.AllowFakePayments {
		if cfg.IsProduction() {
			return nil, nil, fmt.Errorf("bootstrap: ALLOW_FAKE_PAYMENTS must not be enabled in production")
		}
		fake := payments.NewFakeGateway(logger)
		return fake, fake, nil
	}
	return nil, nil, nil
}
