package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	store := newPostgresStoreWithPool(mock)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	return store, mock
}

var appointmentCols = []string{"id", "patient_id", "doctor_id", "slot_date", "slot_time", "amount", "payment_status", "is_completed", "status", "created_at", "updated_at"}

func TestPostgresCreateReservesSlot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booked_slots").
		WithArgs("d1", "2024-05-01", "10:00", "a1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("a1", "p1", "d1", "2024-05-01", "10:00", int64(500), PaymentUnpaid, false, StatusBooked, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	a := &Appointment{ID: "a1", PatientID: "p1", DoctorID: "d1", SlotDate: "2024-05-01", SlotTime: "10:00", Amount: 500}
	if err := store.Create(context.Background(), a); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if a.Status != StatusBooked || a.PaymentStatus != PaymentUnpaid {
		t.Fatalf("expected defaults to be applied, got %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateSlotTaken(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booked_slots").
		WithArgs("d1", "2024-05-01", "10:00", "a2").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	a := &Appointment{ID: "a2", PatientID: "p2", DoctorID: "d1", SlotDate: "2024-05-01", SlotTime: "10:00", Amount: 500}
	if err := store.Create(context.Background(), a); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCancelReleasesSlot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("a1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "slot_date", "slot_time"}).AddRow("d1", "2024-05-01", "10:00"))
	mock.ExpectExec("DELETE FROM booked_slots").
		WithArgs("d1", "2024-05-01", "10:00", "a1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	changed, err := store.Cancel(context.Background(), "a1")
	if err != nil || !changed {
		t.Fatalf("expected cancel to transition, got changed=%v err=%v", changed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCancelAlreadyCancelled(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("a1", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	changed, err := store.Cancel(context.Background(), "a1")
	if err != nil || changed {
		t.Fatalf("expected no-op cancel, got changed=%v err=%v", changed, err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("missing", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if _, err := store.Cancel(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresMarkPaidAndComplete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE appointments\\s+SET payment_status = 'paid'").
		WithArgs("a1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	changed, err := store.MarkPaid(context.Background(), "a1")
	if err != nil || !changed {
		t.Fatalf("expected mark paid to transition, got changed=%v err=%v", changed, err)
	}

	mock.ExpectExec("UPDATE appointments\\s+SET payment_status = 'paid'").
		WithArgs("a1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	changed, err = store.MarkPaid(context.Background(), "a1")
	if err != nil || changed {
		t.Fatalf("expected second mark paid to be a no-op, got changed=%v err=%v", changed, err)
	}

	mock.ExpectExec("UPDATE appointments\\s+SET is_completed = true").
		WithArgs("a1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	changed, err = store.Complete(context.Background(), "a1")
	if err != nil || !changed {
		t.Fatalf("expected complete to transition, got changed=%v err=%v", changed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresListAndBookedSlots(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE doctor_id = \\$1 ORDER BY created_at DESC").
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow("a2", "p2", "d1", "2024-05-02", "11:00", int64(500), PaymentPaid, false, StatusBooked, created.Add(time.Hour), created.Add(time.Hour)).
			AddRow("a1", "p1", "d1", "2024-05-01", "10:00", int64(500), PaymentUnpaid, false, StatusBooked, created, created))

	list, err := store.ListByDoctor(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ListByDoctor returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a2" || !list[0].Paid() {
		t.Fatalf("unexpected list %+v", list)
	}

	mock.ExpectQuery("SELECT slot_date, slot_time FROM booked_slots").
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "slot_time"}).
			AddRow("2024-05-01", "14:30").
			AddRow("2024-05-01", "09:00").
			AddRow("2024-05-02", "11:00"))

	slots, err := store.BookedSlots(context.Background(), "d1")
	if err != nil {
		t.Fatalf("BookedSlots returned error: %v", err)
	}
	if got := slots["2024-05-01"]; len(got) != 2 || got[0] != "09:00" || got[1] != "14:30" {
		t.Fatalf("unexpected slots for 2024-05-01: %v", got)
	}
	if got := slots["2024-05-02"]; len(got) != 1 {
		t.Fatalf("unexpected slots for 2024-05-02: %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
