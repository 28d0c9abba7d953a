package appointments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(f.service, logging.Default())
	r := chi.NewRouter()
	r.Post("/api/appointment", h.Book)
	r.Post("/api/appointment/{id}/cancel", h.Cancel)
	r.Post("/api/appointment/{id}/approve", h.Approve)
	r.Get("/api/appointment/doctor", h.ListForDoctor)
	r.Get("/api/appointment/patient", h.ListForPatient)
	r.Get("/api/admin/appointments", h.ListAll)
	return r
}

func call(t *testing.T, router http.Handler, who *identity.Identity, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req = req.WithContext(identity.WithIdentity(req.Context(), *who))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec.Code, env
}

func TestHandlerBookAndConflict(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	patient := f.asPatient()
	body := `{"doctor_id":"` + f.doctor.ID + `","slot_date":"2024-05-01","slot_time":"10:00"}`

	code, env := call(t, router, &patient, http.MethodPost, "/api/appointment", body)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	var created Appointment
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, f.doctor.ID, created.DoctorID)

	other := identity.Identity{ID: f.other.ID, Role: identity.RolePatient}
	code, env = call(t, router, &other, http.MethodPost, "/api/appointment", body)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)
	assert.Equal(t, ErrSlotTaken.Message, env.Message)

	code, _ = call(t, router, nil, http.MethodPost, "/api/appointment", body)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, router, &patient, http.MethodPost, "/api/appointment", `{"doctor_id":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandlerApproveAndLists(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	a := f.book(t, f.asPatient(), "10:00")
	doctor := f.asDoctor()

	code, env := call(t, router, &doctor, http.MethodPost, "/api/appointment/"+a.ID+"/approve", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrUnpaid.Message, env.Message)

	patient := f.asPatient()
	code, _ = call(t, router, &patient, http.MethodPost, "/api/appointment/"+a.ID+"/approve", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, env = call(t, router, &doctor, http.MethodGet, "/api/appointment/doctor", "")
	require.Equal(t, http.StatusOK, code)
	var list []Details
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Asha", list[0].Patient.Name)

	admin := identity.Identity{ID: "admin", Role: identity.RoleAdmin}
	code, _ = call(t, router, &admin, http.MethodPost, "/api/appointment/"+a.ID+"/cancel", "")
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, router, &admin, http.MethodGet, "/api/admin/appointments", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, StatusCancelled, list[0].Status)

	code, _ = call(t, router, &patient, http.MethodGet, "/api/admin/appointments", "")
	assert.Equal(t, http.StatusForbidden, code)
}
