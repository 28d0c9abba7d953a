// Package auth registers and signs in patients and doctors and issues cookie sessions.
package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72
	maxFees        = 10_000_000
)

var (
	ErrTooManyAttempts = apperr.TooManyRequests("Too many failed login attempts. Please try again later.")
	ErrWrongPassword   = apperr.Unauthorized("Incorrect password. Please try again.")
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PatientRegistration is the patient sign-up request body.
type PatientRegistration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DoctorRegistration is the doctor sign-up and admin provisioning request body.
type DoctorRegistration struct {
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Password   string           `json:"password"`
	Speciality string           `json:"speciality"`
	Degree     string           `json:"degree"`
	Experience string           `json:"experience"`
	About      string           `json:"about"`
	Fees       int64            `json:"fees"`
	Address    accounts.Address `json:"address"`
	Available  *bool            `json:"available"`
}

// Session is an issued, signed session for an account.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  identity.Identity
	Account   any
}

// Service validates credentials and issues sessions.
type Service struct {
	repo     accounts.Repository
	tokens   *TokenIssuer
	throttle *LoginThrottle
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewService wires the credential store and token issuer. throttle and m may be nil.
func NewService(repo accounts.Repository, tokens *TokenIssuer, throttle *LoginThrottle, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("auth: accounts repository required")
	}
	if tokens == nil {
		panic("auth: token issuer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, tokens: tokens, throttle: throttle, metrics: m, logger: logger}
}

// validateIdentityFields returns the bare address parsed from email, so a
// "Name <addr>" form is stored as addr.
func validateIdentityFields(name, email, password string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return "", apperr.Validation("All fields are required: name, email, and password.")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", apperr.Validation("Please enter a valid email address.")
	}
	if len(password) < minPasswordLen {
		return "", apperr.Validation(fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return "", apperr.Validation(fmt.Sprintf("Password must be at most %d characters.", maxPasswordLen))
	}
	return addr.Address, nil
}

// RegisterPatient creates a patient account and signs it in.
func (s *Service) RegisterPatient(ctx context.Context, req PatientRegistration) (*Session, error) {
	email, err := validateIdentityFields(req.Name, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	patient := &accounts.Patient{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.CreatePatient(ctx, patient); err != nil {
		return nil, err
	}
	s.logger.Info("patient registered", "patient_id", patient.ID)
	return s.issue(identity.Identity{ID: patient.ID, Role: identity.RolePatient}, patient)
}

// RegisterDoctor creates a doctor account and signs it in.
func (s *Service) RegisterDoctor(ctx context.Context, req DoctorRegistration) (*Session, error) {
	doctor, err := s.ProvisionDoctor(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(identity.Identity{ID: doctor.ID, Role: identity.RoleDoctor}, doctor)
}

// ProvisionDoctor creates a doctor account without signing it in.
func (s *Service) ProvisionDoctor(ctx context.Context, req DoctorRegistration) (*accounts.Doctor, error) {
	email, err := validateIdentityFields(req.Name, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Speciality) == "" {
		return nil, apperr.Validation("Speciality is required.")
	}
	if req.Fees < 0 || req.Fees > maxFees {
		return nil, apperr.Validation(fmt.Sprintf("Fees must be between 0 and %d.", maxFees))
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	doctor := &accounts.Doctor{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Speciality:   strings.TrimSpace(req.Speciality),
		Degree:       req.Degree,
		Experience:   req.Experience,
		About:        req.About,
		Fees:         req.Fees,
		Address:      req.Address,
		Available:    available,
	}
	if err := s.repo.CreateDoctor(ctx, doctor); err != nil {
		return nil, err
	}
	s.logger.Info("doctor provisioned", "doctor_id", doctor.ID, "speciality", doctor.Speciality)
	return doctor, nil
}

// Login verifies credentials for role and issues a session.
func (s *Service) Login(ctx context.Context, role identity.Role, creds Credentials) (*Session, error) {
	email := accounts.NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, apperr.Validation("Please enter both email and password to log in.")
	}
	if !s.throttle.Allowed(ctx, role, email) {
		s.metrics.ObserveLogin(string(role), "throttled")
		return nil, ErrTooManyAttempts
	}

	id, hash, account, err := s.lookup(ctx, role, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.throttle.RecordFailure(ctx, role, email)
			s.metrics.ObserveLogin(string(role), "not_found")
		}
		return nil, err
	}

	ok, err := CheckPassword(hash, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: compare password: %w", err)
	}
	if !ok {
		s.throttle.RecordFailure(ctx, role, email)
		s.metrics.ObserveLogin(string(role), "bad_password")
		return nil, ErrWrongPassword
	}

	s.throttle.Reset(ctx, role, email)
	s.metrics.ObserveLogin(string(role), "success")
	return s.issue(id, account)
}

func (s *Service) lookup(ctx context.Context, role identity.Role, email string) (identity.Identity, string, any, error) {
	switch role {
	case identity.RolePatient:
		p, err := s.repo.PatientByEmail(ctx, email)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return identity.Identity{}, "", nil, apperr.NotFound("No account found with this email. Please register first.")
			}
			return identity.Identity{}, "", nil, err
		}
		return identity.Identity{ID: p.ID, Role: role}, p.PasswordHash, p, nil
	case identity.RoleDoctor:
		d, err := s.repo.DoctorByEmail(ctx, email)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return identity.Identity{}, "", nil, apperr.NotFound("No doctor account found with this email. Please register first.")
			}
			return identity.Identity{}, "", nil, err
		}
		return identity.Identity{ID: d.ID, Role: role}, d.PasswordHash, d, nil
	default:
		return identity.Identity{}, "", nil, apperr.Validation("Unsupported account type.")
	}
}

// Authenticate verifies a session token issued for role.
func (s *Service) Authenticate(token string, role identity.Role) (identity.Identity, error) {
	return s.tokens.Parse(token, role)
}

func (s *Service) issue(id identity.Identity, account any) (*Session, error) {
	token, expires, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, Identity: id, Account: account}, nil
}
