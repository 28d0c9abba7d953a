package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

type stubSlots map[string]map[string][]string

func (s stubSlots) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	return s[doctorID], nil
}

type stubImages struct {
	doctorID    string
	contentType string
	body        []byte
}

func (s *stubImages) PutDoctorImage(ctx context.Context, doctorID, contentType string, body io.Reader, size int64) (string, error) {
	s.doctorID = doctorID
	s.contentType = contentType
	s.body, _ = io.ReadAll(body)
	return "https://images.example.com/doctors/" + doctorID, nil
}

func seedDoctors(t *testing.T, repo *InMemoryRepository) (*Doctor, *Doctor) {
	t.Helper()
	ctx := context.Background()
	older := &Doctor{Name: "Dr. Rao", Email: "rao@clinic.test", Speciality: "Dermatologist", Fees: 500, Available: true, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &Doctor{Name: "Dr. Iyer", Email: "iyer@clinic.test", Speciality: "Neurologist", Fees: 800, Available: true}
	hidden := &Doctor{Name: "Dr. Off", Email: "off@clinic.test", Speciality: "Dermatologist", Available: false}
	for _, d := range []*Doctor{older, newer, hidden} {
		if err := repo.CreateDoctor(ctx, d); err != nil {
			t.Fatalf("create doctor: %v", err)
		}
	}
	return older, newer
}

func TestListDoctors_AvailableNewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	older, newer := seedDoctors(t, repo)
	handler := NewHandler(repo, nil, nil, logging.Default())

	w := httptest.NewRecorder()
	handler.ListDoctors(w, httptest.NewRequest(http.MethodGet, "/api/doctor", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var doctors []Doctor
	if err := json.Unmarshal(decode(t, w).Data, &doctors); err != nil {
		t.Fatalf("decode doctors: %v", err)
	}
	if len(doctors) != 2 {
		t.Fatalf("expected 2 available doctors, got %d", len(doctors))
	}
	if doctors[0].ID != newer.ID || doctors[1].ID != older.ID {
		t.Fatalf("expected newest first, got %s then %s", doctors[0].Name, doctors[1].Name)
	}
}

func TestListDoctors_FilterBySpeciality(t *testing.T) {
	repo := NewInMemoryRepository()
	older, _ := seedDoctors(t, repo)
	handler := NewHandler(repo, nil, nil, logging.Default())

	w := httptest.NewRecorder()
	handler.ListDoctors(w, httptest.NewRequest(http.MethodGet, "/api/doctor?speciality=dermatologist", nil))

	var doctors []Doctor
	if err := json.Unmarshal(decode(t, w).Data, &doctors); err != nil {
		t.Fatalf("decode doctors: %v", err)
	}
	if len(doctors) != 1 || doctors[0].ID != older.ID {
		t.Fatalf("expected only the available dermatologist, got %+v", doctors)
	}

	w = httptest.NewRecorder()
	handler.ListDoctors(w, httptest.NewRequest(http.MethodGet, "/api/doctor?speciality=", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for blank speciality, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestGetDoctor_IncludesBookedSlots(t *testing.T) {
	repo := NewInMemoryRepository()
	older, _ := seedDoctors(t, repo)
	slots := stubSlots{older.ID: {"2024-05-01": {"10:00", "11:30"}}}
	handler := NewHandler(repo, slots, nil, logging.Default())

	r := chi.NewRouter()
	r.Get("/api/doctor/{id}", handler.GetDoctor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/doctor/"+older.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var doctor Doctor
	if err := json.Unmarshal(decode(t, w).Data, &doctor); err != nil {
		t.Fatalf("decode doctor: %v", err)
	}
	if got := doctor.SlotsBooked["2024-05-01"]; len(got) != 2 {
		t.Fatalf("expected booked slots to be embedded, got %v", doctor.SlotsBooked)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/doctor/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestDoctorProfile_RequiresDoctor(t *testing.T) {
	repo := NewInMemoryRepository()
	older, _ := seedDoctors(t, repo)
	handler := NewHandler(repo, nil, nil, logging.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/doctor/profile", nil)
	w := httptest.NewRecorder()
	handler.DoctorProfile(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	ctx := identity.WithIdentity(req.Context(), identity.Identity{ID: older.ID, Role: identity.RoleDoctor})
	w = httptest.NewRecorder()
	handler.DoctorProfile(w, req.WithContext(ctx))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password hash must never be serialized")
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := NewInMemoryRepository()
	patient := &Patient{Name: "Asha", Email: "a@x.com", PasswordHash: "hash"}
	if err := repo.CreatePatient(context.Background(), patient); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	handler := NewHandler(repo, nil, nil, logging.Default())

	body := `{"phone":"+91 98765 43210","dob":"1990-02-03","address":{"line1":"12 MG Road","line2":"Bengaluru"}}`
	req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(body))
	req = req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{ID: patient.ID, Role: identity.RolePatient}))
	w := httptest.NewRecorder()
	handler.UpdateProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	stored, _ := repo.PatientByID(context.Background(), patient.ID)
	if stored.Phone != "+91 98765 43210" || stored.Address.Line1 != "12 MG Road" || stored.DateOfBirth != "1990-02-03" {
		t.Fatalf("profile not applied: %+v", stored)
	}
	if stored.Name != "Asha" || stored.PasswordHash != "hash" {
		t.Fatalf("unset fields must be preserved: %+v", stored)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(`{"dob":"03/02/1990"}`))
	req = req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{ID: patient.ID, Role: identity.RolePatient}))
	w = httptest.NewRecorder()
	handler.UpdateProfile(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for bad dob, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestSetAvailability(t *testing.T) {
	repo := NewInMemoryRepository()
	older, _ := seedDoctors(t, repo)
	handler := NewHandler(repo, nil, nil, logging.Default())

	r := chi.NewRouter()
	r.Patch("/api/admin/doctors/{id}/availability", handler.SetAvailability)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/admin/doctors/"+older.ID+"/availability", strings.NewReader(`{"available":false}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	stored, _ := repo.DoctorByID(context.Background(), older.ID)
	if stored.Available {
		t.Fatalf("expected doctor to be unavailable")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/admin/doctors/"+older.ID+"/availability", strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestUploadImage(t *testing.T) {
	repo := NewInMemoryRepository()
	older, _ := seedDoctors(t, repo)
	images := &stubImages{}
	handler := NewHandler(repo, nil, images, logging.Default())

	r := chi.NewRouter()
	r.Put("/api/admin/doctors/{id}/image", handler.UploadImage)

	payload := []byte("\x89PNG fake image bytes")
	req := httptest.NewRequest(http.MethodPut, "/api/admin/doctors/"+older.ID+"/image", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if images.doctorID != older.ID || images.contentType != "image/png" || !bytes.Equal(images.body, payload) {
		t.Fatalf("unexpected upload %+v", images)
	}
	stored, _ := repo.DoctorByID(context.Background(), older.ID)
	if stored.ImageURL != "https://images.example.com/doctors/"+older.ID {
		t.Fatalf("expected image url to be stored, got %q", stored.ImageURL)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/admin/doctors/"+older.ID+"/image", strings.NewReader("text"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for non-image upload, got %d", http.StatusBadRequest, w.Code)
	}
}
