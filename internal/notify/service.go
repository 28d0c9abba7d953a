package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const defaultSendTimeout = 10 * time.Second

// Service turns domain events into emails.
type Service struct {
	email       EmailSender
	sendTimeout time.Duration
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
}

// NewService bounds every Send by sendTimeout (10s when zero).
func NewService(email EmailSender, sendTimeout time.Duration, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Service{email: email, sendTimeout: sendTimeout, metrics: m, logger: logger}
}

// NotifyPaymentConfirmed emails the patient a payment receipt.
func (s *Service) NotifyPaymentConfirmed(ctx context.Context, evt events.PaymentConfirmedV1) error {
	if strings.TrimSpace(evt.PatientEmail) == "" {
		s.logger.Warn("notify: payment confirmation without patient email", "appointment_id", evt.AppointmentID)
		s.metrics.ObserveNotification("skipped")
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := s.email.Send(sendCtx, PaymentConfirmationEmail(evt)); err != nil {
		s.metrics.ObserveNotification("failed")
		return fmt.Errorf("notify: payment confirmation for %s: %w", evt.AppointmentID, err)
	}
	s.metrics.ObserveNotification("sent")
	s.logger.Info("payment confirmation sent", "appointment_id", evt.AppointmentID, "event_id", evt.EventID)
	return nil
}
