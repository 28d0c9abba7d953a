package accounts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for patient and doctor storage
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	PatientByID(ctx context.Context, id string) (*Patient, error)
	PatientByEmail(ctx context.Context, email string) (*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error

	CreateDoctor(ctx context.Context, d *Doctor) error
	DoctorByID(ctx context.Context, id string) (*Doctor, error)
	DoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error)
	SetDoctorAvailability(ctx context.Context, id string, available bool) (*Doctor, error)
	SetDoctorImage(ctx context.Context, id, imageURL string) (*Doctor, error)
}

// prepareNew assigns the id and timestamp a store would otherwise generate.
func prepareNew(id *string, email *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	*email = NormalizeEmail(*email)
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

// InMemoryRepository is a Repository backed by maps, used for development and tests
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	doctors  map[string]*Doctor
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		patients: make(map[string]*Patient),
		doctors:  make(map[string]*Doctor),
	}
}

func (r *InMemoryRepository) CreatePatient(ctx context.Context, p *Patient) error {
	prepareNew(&p.ID, &p.Email, &p.CreatedAt)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.patients {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	clone := *p
	r.patients[p.ID] = &clone
	return nil
}

func (r *InMemoryRepository) PatientByID(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *InMemoryRepository) PatientByEmail(ctx context.Context, email string) (*Patient, error) {
	email = NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patients {
		if p.Email == email {
			clone := *p
			return &clone, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *InMemoryRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.patients[p.ID]
	if !ok {
		return ErrPatientNotFound
	}
	clone := *p
	clone.Email = existing.Email
	clone.PasswordHash = existing.PasswordHash
	clone.CreatedAt = existing.CreatedAt
	r.patients[p.ID] = &clone
	return nil
}

func (r *InMemoryRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	prepareNew(&d.ID, &d.Email, &d.CreatedAt)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.doctors {
		if existing.Email == d.Email {
			return ErrEmailTaken
		}
	}
	clone := *d
	clone.SlotsBooked = nil
	r.doctors[d.ID] = &clone
	return nil
}

func (r *InMemoryRepository) DoctorByID(ctx context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *InMemoryRepository) DoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	email = NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.doctors {
		if d.Email == email {
			clone := *d
			return &clone, nil
		}
	}
	return nil, ErrDoctorNotFound
}

// ListDoctors returns matching doctors, newest first.
func (r *InMemoryRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		if filter.AvailableOnly && !d.Available {
			continue
		}
		if filter.Speciality != "" && !strings.EqualFold(d.Speciality, filter.Speciality) {
			continue
		}
		clone := *d
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) SetDoctorAvailability(ctx context.Context, id string, available bool) (*Doctor, error) {
	return r.mutateDoctor(id, func(d *Doctor) { d.Available = available })
}

func (r *InMemoryRepository) SetDoctorImage(ctx context.Context, id, imageURL string) (*Doctor, error) {
	return r.mutateDoctor(id, func(d *Doctor) { d.ImageURL = imageURL })
}

func (r *InMemoryRepository) mutateDoctor(id string, fn func(*Doctor)) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	fn(d)
	clone := *d
	return &clone, nil
}
