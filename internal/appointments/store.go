package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists appointments together with the slot ledger. Create and Cancel
// apply the appointment write and the ledger write as one unit.
type Store interface {
	// Create reserves the slot and inserts a; ErrSlotTaken when the slot is held.
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	// Cancel marks a cancelled and releases its slot. It reports false when a
	// was already cancelled.
	Cancel(ctx context.Context, id string) (bool, error)
	// Complete sets is_completed when a is paid, booked and not yet completed.
	Complete(ctx context.Context, id string) (bool, error)
	// MarkPaid flips unpaid to paid, reporting whether this call made the change.
	MarkPaid(ctx context.Context, id string) (bool, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
	ListAll(ctx context.Context) ([]*Appointment, error)
	// BookedSlots returns the doctor's ledger grouped by date.
	BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error)
}

func prepareNew(a *Appointment, now time.Time) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentUnpaid
	}
	if a.Status == "" {
		a.Status = StatusBooked
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
}

type slotKey struct {
	doctorID string
	date     string
	time     string
}

// Ledger is the in-memory slot ledger. Each entry records the appointment
// holding it. Callers synchronize access.
type Ledger struct {
	slots map[slotKey]string
}

func NewLedger() *Ledger {
	return &Ledger{slots: make(map[slotKey]string)}
}

// Reserve records the slot for appointmentID. It returns false when another
// appointment already holds it; reserving a slot already held by the same
// appointment is a no-op.
func (l *Ledger) Reserve(doctorID, date, clock, appointmentID string) bool {
	key := slotKey{doctorID, date, clock}
	if holder, ok := l.slots[key]; ok {
		return holder == appointmentID
	}
	l.slots[key] = appointmentID
	return true
}

// Release frees the slot if appointmentID holds it; otherwise it does nothing.
func (l *Ledger) Release(doctorID, date, clock, appointmentID string) {
	key := slotKey{doctorID, date, clock}
	if holder, ok := l.slots[key]; ok && holder == appointmentID {
		delete(l.slots, key)
	}
}

// ForDoctor returns the doctor's booked times grouped by date, each day sorted.
func (l *Ledger) ForDoctor(doctorID string) map[string][]string {
	out := map[string][]string{}
	for key := range l.slots {
		if key.doctorID == doctorID {
			out[key.date] = append(out[key.date], key.time)
		}
	}
	for date := range out {
		sortTimes(out[date])
	}
	return out
}

func sortTimes(times []string) {
	sort.Slice(times, func(i, j int) bool {
		mi, _ := SlotMinutes(times[i])
		mj, _ := SlotMinutes(times[j])
		return mi < mj
	})
}

// InMemoryStore is a Store guarded by a single mutex, used for development and tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	appointments map[string]*Appointment
	ledger       *Ledger
	now          func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		appointments: make(map[string]*Appointment),
		ledger:       NewLedger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Create(ctx context.Context, a *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareNew(a, s.now())
	if !s.ledger.Reserve(a.DoctorID, a.SlotDate, a.SlotTime, a.ID) {
		return ErrSlotTaken
	}
	clone := *a
	s.appointments[a.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *InMemoryStore) Cancel(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Cancelled() {
		return false, nil
	}
	a.Status = StatusCancelled
	a.UpdatedAt = s.now()
	s.ledger.Release(a.DoctorID, a.SlotDate, a.SlotTime, a.ID)
	return true, nil
}

func (s *InMemoryStore) Complete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.IsCompleted || a.Cancelled() || !a.Paid() {
		return false, nil
	}
	a.IsCompleted = true
	a.UpdatedAt = s.now()
	return true, nil
}

func (s *InMemoryStore) MarkPaid(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Paid() {
		return false, nil
	}
	a.PaymentStatus = PaymentPaid
	a.UpdatedAt = s.now()
	return true, nil
}

func (s *InMemoryStore) ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error) {
	return s.list(func(a *Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (s *InMemoryStore) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.list(func(a *Appointment) bool { return a.PatientID == patientID }), nil
}

func (s *InMemoryStore) ListAll(ctx context.Context) ([]*Appointment, error) {
	return s.list(func(*Appointment) bool { return true }), nil
}

// list returns matching appointments, newest first.
func (s *InMemoryStore) list(match func(*Appointment) bool) []*Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Appointment, 0)
	for _, a := range s.appointments {
		if match(a) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *InMemoryStore) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.ForDoctor(doctorID), nil
}
