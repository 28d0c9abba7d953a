package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var appointmentsTracer = otel.Tracer("clinic.internal.appointments")

var errPatientsOnly = apperr.Forbidden("Only patients can book appointments.")

// Directory resolves the accounts an appointment refers to.
type Directory interface {
	PatientByID(ctx context.Context, id string) (*accounts.Patient, error)
	DoctorByID(ctx context.Context, id string) (*accounts.Doctor, error)
}

// Service applies authorization and lifecycle rules on top of a Store.
type Service struct {
	store     Store
	directory Directory
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

func NewService(store Store, directory Directory, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if directory == nil {
		panic("appointments: directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, directory: directory, metrics: m, logger: logger}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return appointmentsTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Book reserves the requested slot for the calling patient.
func (s *Service) Book(ctx context.Context, who identity.Identity, req BookRequest) (_ *Appointment, err error) {
	ctx, span := startSpan(ctx, "appointments.book",
		attribute.String("clinic.patient_id", who.ID),
		attribute.String("clinic.doctor_id", req.DoctorID),
	)
	defer func() { endSpan(span, err) }()

	if !who.Is(identity.RolePatient) {
		return nil, errPatientsOnly
	}
	doctorID := strings.TrimSpace(req.DoctorID)
	if doctorID == "" {
		return nil, ErrMissingDoctor
	}
	if req.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	date, clock, err := NormalizeSlot(req.SlotDate, req.SlotTime)
	if err != nil {
		return nil, err
	}

	doctor, err := s.directory.DoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		s.metrics.ObserveBooking("unavailable")
		return nil, ErrDoctorUnavailable
	}

	if req.Amount != 0 && req.Amount != doctor.Fees {
		return nil, ErrInvalidAmount
	}
	a := &Appointment{
		PatientID: who.ID,
		DoctorID:  doctor.ID,
		SlotDate:  date,
		SlotTime:  clock,
		Amount:    doctor.Fees,
	}
	if err := s.store.Create(ctx, a); err != nil {
		outcome := "error"
		if errors.Is(err, ErrSlotTaken) {
			outcome = "conflict"
		}
		s.metrics.ObserveBooking(outcome)
		return nil, err
	}
	s.metrics.ObserveBooking("booked")
	span.SetAttributes(attribute.String("clinic.appointment_id", a.ID))
	s.logger.Info("appointment booked",
		"appointment_id", a.ID,
		"doctor_id", a.DoctorID,
		"slot_date", a.SlotDate,
		"slot_time", a.SlotTime,
	)
	return a, nil
}

// Cancel cancels an appointment on behalf of its patient, its doctor or an admin.
// Cancelling an already cancelled appointment succeeds without changes.
func (s *Service) Cancel(ctx context.Context, who identity.Identity, id string) (_ *Appointment, err error) {
	ctx, span := startSpan(ctx, "appointments.cancel",
		attribute.String("clinic.appointment_id", id),
		attribute.String("clinic.role", string(who.Role)),
	)
	defer func() { endSpan(span, err) }()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mayCancel(who, a) {
		return nil, ErrNotOwner
	}

	changed, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.ObserveTransition("cancelled")
		s.logger.Info("appointment cancelled", "appointment_id", id, "by_role", string(who.Role))
	}
	return s.store.Get(ctx, id)
}

func mayCancel(who identity.Identity, a *Appointment) bool {
	switch who.Role {
	case identity.RoleAdmin:
		return true
	case identity.RolePatient:
		return who.ID == a.PatientID
	case identity.RoleDoctor:
		return who.ID == a.DoctorID
	default:
		return false
	}
}

// Approve marks a paid appointment completed. Only the assigned doctor may approve.
func (s *Service) Approve(ctx context.Context, who identity.Identity, id string) (_ *Appointment, err error) {
	ctx, span := startSpan(ctx, "appointments.approve",
		attribute.String("clinic.appointment_id", id),
		attribute.String("clinic.doctor_id", who.ID),
	)
	defer func() { endSpan(span, err) }()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.Is(identity.RoleDoctor) || a.DoctorID != who.ID {
		return nil, ErrWrongDoctor
	}
	if err := approvable(a); err != nil {
		return nil, err
	}

	changed, err := s.store.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race with a concurrent cancel or approve.
		if err := approvable(current); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("appointments: approve %s: no transition", id)
	}
	s.metrics.ObserveTransition("completed")
	s.logger.Info("appointment approved", "appointment_id", id, "doctor_id", who.ID)
	return current, nil
}

func approvable(a *Appointment) error {
	switch {
	case a.IsCompleted:
		return ErrAlreadyCompleted
	case a.Cancelled():
		return ErrCancelled
	case !a.Paid():
		return ErrUnpaid
	}
	return nil
}

// MarkPaid records a confirmed payment. It reports whether this call moved the
// appointment from unpaid to paid.
func (s *Service) MarkPaid(ctx context.Context, id string) (_ bool, err error) {
	ctx, span := startSpan(ctx, "appointments.mark_paid", attribute.String("clinic.appointment_id", id))
	defer func() { endSpan(span, err) }()

	changed, err := s.store.MarkPaid(ctx, id)
	if err != nil {
		return false, err
	}
	if changed {
		s.metrics.ObserveTransition("paid")
	}
	span.SetAttributes(attribute.Bool("clinic.transitioned", changed))
	return changed, nil
}

// Find returns the bare appointment.
func (s *Service) Find(ctx context.Context, id string) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

// Get returns the appointment expanded with patient and doctor details.
func (s *Service) Get(ctx context.Context, id string) (*Details, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.expand(ctx, []*Appointment{a})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]Details, error) {
	list, err := s.store.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, list)
}

func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Details, error) {
	list, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, list)
}

func (s *Service) ListAll(ctx context.Context) ([]Details, error) {
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, list)
}

// ListRaw returns the doctor's appointments without account lookups.
func (s *Service) ListRaw(ctx context.Context, doctorID string) ([]*Appointment, error) {
	return s.store.ListByDoctor(ctx, doctorID)
}

// BookedSlots exposes the doctor's ledger view.
func (s *Service) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	return s.store.BookedSlots(ctx, doctorID)
}

// expand attaches account summaries, looking each account up once. Accounts
// that no longer exist leave a summary carrying only the id.
func (s *Service) expand(ctx context.Context, list []*Appointment) ([]Details, error) {
	patients := map[string]accounts.PatientSummary{}
	doctors := map[string]accounts.DoctorSummary{}

	out := make([]Details, 0, len(list))
	for _, a := range list {
		ps, ok := patients[a.PatientID]
		if !ok {
			p, err := s.directory.PatientByID(ctx, a.PatientID)
			switch {
			case err == nil:
				ps = p.Summary()
			case errors.Is(err, accounts.ErrPatientNotFound):
				ps = accounts.PatientSummary{ID: a.PatientID}
			default:
				return nil, err
			}
			patients[a.PatientID] = ps
		}

		ds, ok := doctors[a.DoctorID]
		if !ok {
			d, err := s.directory.DoctorByID(ctx, a.DoctorID)
			switch {
			case err == nil:
				ds = d.Summary()
			case errors.Is(err, accounts.ErrDoctorNotFound):
				ds = accounts.DoctorSummary{ID: a.DoctorID}
			default:
				return nil, err
			}
			doctors[a.DoctorID] = ds
		}

		out = append(out, Details{Appointment: *a, Patient: ps, Doctor: ds})
	}
	return out, nil
}
