package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Publisher enqueues notification jobs for the worker.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// PublishPaymentConfirmed enqueues the confirmation email for evt.
func (p *Publisher) PublishPaymentConfirmed(ctx context.Context, evt events.PaymentConfirmedV1) error {
	j, body, err := encodeJob(job{ID: evt.EventID, Kind: events.PaymentConfirmedType, Payment: &evt})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: enqueue job: %w", err)
	}
	p.logger.Debug("notification job enqueued", "job_id", j.ID, "kind", j.Kind, "appointment_id", evt.AppointmentID)
	return nil
}
