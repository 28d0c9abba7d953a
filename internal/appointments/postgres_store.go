package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool the store uses.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps appointments and the booked_slots ledger in Postgres.
// The ledger's primary key (doctor_id, slot_date, slot_time) is what makes
// concurrent bookings of one slot resolve to a single winner.
type PostgresStore struct {
	pool PgxPool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return newPostgresStoreWithPool(pool)
}

func newPostgresStoreWithPool(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("appointments: pool required")
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const appointmentColumns = `id, patient_id, doctor_id, slot_date, slot_time, amount, payment_status, is_completed, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.SlotDate, &a.SlotTime, &a.Amount,
		&a.PaymentStatus, &a.IsCompleted, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// reserveSlot inserts the ledger row inside tx, reporting false when the slot is held.
func reserveSlot(ctx context.Context, tx pgx.Tx, doctorID, date, clock, appointmentID string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time, appointment_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, doctorID, date, clock, appointmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// releaseSlot deletes the ledger row held by appointmentID; a missing row is not an error.
func releaseSlot(ctx context.Context, tx pgx.Tx, doctorID, date, clock, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM booked_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3 AND appointment_id = $4
	`, doctorID, date, clock, appointmentID)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, a *Appointment) error {
	prepareNew(a, s.now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	reserved, err := reserveSlot(ctx, tx, a.DoctorID, a.SlotDate, a.SlotTime, a.ID)
	if err != nil {
		return fmt.Errorf("appointments: reserve slot: %w", err)
	}
	if !reserved {
		return ErrSlotTaken
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.PatientID, a.DoctorID, a.SlotDate, a.SlotTime, a.Amount,
		a.PaymentStatus, a.IsCompleted, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Cancel(ctx context.Context, id string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("appointments: begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	var doctorID, date, clock string
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING doctor_id, slot_date, slot_time
	`, id, s.now()).Scan(&doctorID, &date, &clock)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("appointments: cancel: %w", err)
		}
		if err := s.exists(ctx, tx, id); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := releaseSlot(ctx, tx, doctorID, date, clock, id); err != nil {
		return false, fmt.Errorf("appointments: release slot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("appointments: commit cancel: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET is_completed = true, updated_at = $2
		WHERE id = $1 AND NOT is_completed AND payment_status = 'paid' AND status <> 'cancelled'
	`, id, s.now())
	if err != nil {
		return false, fmt.Errorf("appointments: complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, s.exists(ctx, s.pool, id)
	}
	return true, nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_status = 'paid', updated_at = $2
		WHERE id = $1 AND payment_status <> 'paid'
	`, id, s.now())
	if err != nil {
		return false, fmt.Errorf("appointments: mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, s.exists(ctx, s.pool, id)
	}
	return true, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) exists(ctx context.Context, q rowQuerier, id string) error {
	var one int
	if err := q.QueryRow(ctx, `SELECT 1 FROM appointments WHERE id = $1`, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("appointments: check exists: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error) {
	return s.list(ctx, `WHERE doctor_id = $1`, doctorID)
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.list(ctx, `WHERE patient_id = $1`, patientID)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*Appointment, error) {
	return s.list(ctx, ``)
}

func (s *PostgresStore) list(ctx context.Context, where string, args ...any) ([]*Appointment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := make([]*Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slot_date, slot_time FROM booked_slots WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var date, clock string
		if err := rows.Scan(&date, &clock); err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		out[date] = append(out[date], clock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	for date := range out {
		sortTimes(out[date])
	}
	return out, nil
}
