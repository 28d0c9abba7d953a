package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients and doctors in the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("accounts: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db querier) *PostgresRepository {
	if db == nil {
		panic("accounts: querier required")
	}
	return &PostgresRepository{db: db}
}

const patientColumns = `id, name, email, password_hash, phone, gender, dob, address_line1, address_line2, image_url, created_at`

const doctorColumns = `id, name, email, password_hash, speciality, degree, experience, about, fees, address_line1, address_line2, image_url, available, created_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) CreatePatient(ctx context.Context, p *Patient) error {
	prepareNew(&p.ID, &p.Email, &p.CreatedAt)
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Email, p.PasswordHash,
		p.Phone, p.Gender, p.DateOfBirth,
		p.Address.Line1, p.Address.Line2, p.ImageURL, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("accounts: insert patient: %w", err)
	}
	return nil
}

func (r *PostgresRepository) PatientByID(ctx context.Context, id string) (*Patient, error) {
	return r.selectPatient(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) PatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.selectPatient(ctx, `WHERE email = $1`, NormalizeEmail(email))
}

func (r *PostgresRepository) selectPatient(ctx context.Context, where string, arg any) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ` + where
	var p Patient
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Name, &p.Email, &p.PasswordHash,
		&p.Phone, &p.Gender, &p.DateOfBirth,
		&p.Address.Line1, &p.Address.Line2, &p.ImageURL, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("accounts: select patient: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients
		SET name = $2, phone = $3, gender = $4, dob = $5, address_line1 = $6, address_line2 = $7, image_url = $8
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Phone, p.Gender, p.DateOfBirth,
		p.Address.Line1, p.Address.Line2, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("accounts: update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	prepareNew(&d.ID, &d.Email, &d.CreatedAt)
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.Name, d.Email, d.PasswordHash,
		d.Speciality, d.Degree, d.Experience, d.About, d.Fees,
		d.Address.Line1, d.Address.Line2, d.ImageURL, d.Available, d.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("accounts: insert doctor: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DoctorByID(ctx context.Context, id string) (*Doctor, error) {
	return r.selectDoctor(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
}

func (r *PostgresRepository) DoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return r.selectDoctor(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE email = $1`, NormalizeEmail(email))
}

func (r *PostgresRepository) selectDoctor(ctx context.Context, query string, args ...any) (*Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("accounts: select doctor: %w", err)
	}
	return d, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.PasswordHash,
		&d.Speciality, &d.Degree, &d.Experience, &d.About, &d.Fees,
		&d.Address.Line1, &d.Address.Line2, &d.ImageURL, &d.Available, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDoctors returns matching doctors, newest first.
func (r *PostgresRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE ($1 = '' OR lower(speciality) = lower($1))
		  AND (NOT $2 OR available)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, filter.Speciality, filter.AvailableOnly)
	if err != nil {
		return nil, fmt.Errorf("accounts: list doctors: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("accounts: scan doctor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts: list doctors: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetDoctorAvailability(ctx context.Context, id string, available bool) (*Doctor, error) {
	query := `UPDATE doctors SET available = $2 WHERE id = $1 RETURNING ` + doctorColumns
	return r.selectDoctor(ctx, query, id, available)
}

func (r *PostgresRepository) SetDoctorImage(ctx context.Context, id, imageURL string) (*Doctor, error) {
	query := `UPDATE doctors SET image_url = $2 WHERE id = $1 RETURNING ` + doctorColumns
	return r.selectDoctor(ctx, query, id, imageURL)
}
