package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var paymentsTracer = otel.Tracer("clinic.internal.payments")

const defaultCurrency = "INR"

var (
	ErrMissingOrderID = apperr.Validation("razorpay_order_id is required.")
	ErrAlreadyPaid    = apperr.PreconditionFailed("Appointment is already paid.")
	ErrReceiptMissing = apperr.NotFound("Receipt (appointment ID) not found in payment order.")
	errNotOwnOrder    = apperr.Forbidden("Not authorized to pay for this appointment.")
	ErrInvalidAmount  = apperr.PreconditionFailed("Appointment amount cannot be charged.")
)

// maxMajorAmount keeps the minor-unit conversion inside int64.
const maxMajorAmount = math.MaxInt64 / 100

// AppointmentPayments is the slice of the appointment service the bridge drives.
type AppointmentPayments interface {
	Find(ctx context.Context, id string) (*appointments.Appointment, error)
	MarkPaid(ctx context.Context, id string) (bool, error)
}

// Directory resolves the accounts named in a confirmation email.
type Directory interface {
	PatientByID(ctx context.Context, id string) (*accounts.Patient, error)
	DoctorByID(ctx context.Context, id string) (*accounts.Doctor, error)
}

// ConfirmationPublisher enqueues payment confirmation jobs.
type ConfirmationPublisher interface {
	PublishPaymentConfirmed(ctx context.Context, evt events.PaymentConfirmedV1) error
}

// BridgeConfig carries the gateway settings.
type BridgeConfig struct {
	Currency string
}

// Bridge creates gateway orders for appointments and settles them.
type Bridge struct {
	gateway      Gateway
	appointments AppointmentPayments
	directory    Directory
	publisher    ConfirmationPublisher
	metrics      *metrics.BookingMetrics
	currency     string
	logger       *logging.Logger
	now          func() time.Time
}

func NewBridge(gateway Gateway, appts AppointmentPayments, directory Directory, publisher ConfirmationPublisher, cfg BridgeConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Bridge {
	if gateway == nil {
		panic("payments: gateway required")
	}
	if appts == nil {
		panic("payments: appointments required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &Bridge{
		gateway:      gateway,
		appointments: appts,
		directory:    directory,
		publisher:    publisher,
		metrics:      m,
		currency:     currency,
		logger:       logger,
		now:          time.Now,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return paymentsTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateOrder opens a gateway order for the appointment's amount. Patients may
// only pay for their own appointments.
func (b *Bridge) CreateOrder(ctx context.Context, who identity.Identity, appointmentID string) (_ *Order, err error) {
	ctx, span := startSpan(ctx, "payments.create_order",
		attribute.String("clinic.appointment_id", appointmentID),
		attribute.String("clinic.gateway", b.gateway.Name()),
	)
	defer func() { endSpan(span, err) }()

	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return nil, appointments.ErrNotFound
	}
	a, err := b.appointments.Find(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if who.Is(identity.RolePatient) && a.PatientID != who.ID {
		return nil, errNotOwnOrder
	}
	if a.Cancelled() {
		return nil, appointments.ErrCancelled
	}
	if a.Paid() {
		return nil, ErrAlreadyPaid
	}

	if a.Amount <= 0 || a.Amount > maxMajorAmount {
		return nil, ErrInvalidAmount
	}

	order, err := b.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   a.Amount * 100,
		Currency: b.currency,
		Receipt:  a.ID,
		Notes:    map[string]string{"doctor_id": a.DoctorID, "patient_id": a.PatientID},
	})
	if err != nil {
		return nil, fmt.Errorf("payments: create order: %w", err)
	}
	b.logger.Info("payment order created", "appointment_id", a.ID, "order_id", order.ID, "gateway", b.gateway.Name())
	return order, nil
}

// VerifyResult reports the settled state of an order.
type VerifyResult struct {
	AppointmentID string `json:"appointment_id"`
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	// Transitioned is true only for the call that moved the appointment to paid.
	Transitioned bool `json:"transitioned"`
}

// Verify fetches the order from the gateway and, when it is paid, marks the
// appointment paid. The confirmation notification is published only by the
// call that performs the unpaid to paid transition, so polls and webhooks can
// race freely.
func (b *Bridge) Verify(ctx context.Context, orderID string) (_ *VerifyResult, err error) {
	ctx, span := startSpan(ctx, "payments.verify", attribute.String("clinic.order_id", orderID))
	defer func() {
		b.metrics.ObserveVerification(verificationOutcome(err))
		endSpan(span, err)
	}()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	order, err := b.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("payments: fetch order: %w", err)
	}
	if strings.TrimSpace(order.Receipt) == "" {
		return nil, ErrReceiptMissing
	}
	a, err := b.appointments.Find(ctx, order.Receipt)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("clinic.appointment_id", a.ID), attribute.String("clinic.order_status", order.Status))

	if !order.Paid() {
		return nil, apperr.PaymentIncomplete("Payment not completed. Status: " + order.Status)
	}

	transitioned, err := b.appointments.MarkPaid(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	res := &VerifyResult{AppointmentID: a.ID, OrderID: order.ID, Status: order.Status, Transitioned: transitioned}
	if !transitioned {
		b.logger.Info("payment already recorded", "appointment_id", a.ID, "order_id", order.ID)
		return res, nil
	}

	b.logger.Info("payment confirmed", "appointment_id", a.ID, "order_id", order.ID)
	b.publishConfirmation(ctx, a, order)
	return res, nil
}

// publishConfirmation never fails the verification; payment state is already committed.
func (b *Bridge) publishConfirmation(ctx context.Context, a *appointments.Appointment, order *Order) {
	if b.publisher == nil {
		return
	}
	evt := events.PaymentConfirmedV1{
		EventID:       uuid.NewString(),
		AppointmentID: a.ID,
		Provider:      b.gateway.Name(),
		OrderID:       order.ID,
		Amount:        a.Amount,
		Currency:      b.currency,
		SlotDate:      a.SlotDate,
		SlotTime:      a.SlotTime,
		OccurredAt:    b.now().UTC(),
	}
	if order.Currency != "" {
		evt.Currency = order.Currency
	}
	if b.directory != nil {
		if p, err := b.directory.PatientByID(ctx, a.PatientID); err == nil {
			evt.PatientName = p.Name
			evt.PatientEmail = p.Email
		} else {
			b.logger.Warn("confirmation patient lookup failed", "error", err, "appointment_id", a.ID)
		}
		if d, err := b.directory.DoctorByID(ctx, a.DoctorID); err == nil {
			evt.DoctorName = d.Name
			evt.DoctorAddress = []string{d.Address.Line1, d.Address.Line2}
		} else {
			b.logger.Warn("confirmation doctor lookup failed", "error", err, "appointment_id", a.ID)
		}
	}
	if err := b.publisher.PublishPaymentConfirmed(ctx, evt); err != nil {
		b.logger.Error("failed to enqueue payment confirmation", "error", err, "appointment_id", a.ID, "event_id", evt.EventID)
	}
}

func verificationOutcome(err error) string {
	switch {
	case err == nil:
		return "paid"
	case apperr.Is(err, apperr.KindPaymentIncomplete):
		return "incomplete"
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindValidation):
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
