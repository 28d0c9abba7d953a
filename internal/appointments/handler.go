package appointments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Handler exposes the appointment lifecycle over HTTP. Every route expects the
// session or admin middleware to have attached an identity.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("appointments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Book handles POST /api/appointment.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RolePatient)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req BookRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	a, err := h.service.Book(r.Context(), caller, req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusCreated, "Appointment booked successfully.", a)
}

// Cancel handles POST /api/appointment/{id}/cancel for patients, doctors and admins.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RolePatient, identity.RoleDoctor, identity.RoleAdmin)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	a, err := h.service.Cancel(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Appointment cancelled.", a)
}

// Approve handles POST /api/appointment/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RoleDoctor)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	a, err := h.service.Approve(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Appointment approved.", a)
}

// ListForDoctor handles GET /api/appointment/doctor.
func (h *Handler) ListForDoctor(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RoleDoctor)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := h.service.ListForDoctor(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Appointments fetched.", list)
}

// ListForPatient handles GET /api/appointment/patient.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RolePatient)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := h.service.ListForPatient(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Appointments fetched.", list)
}

// ListAll handles GET /api/admin/appointments.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.Require(r.Context(), identity.RoleAdmin); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := h.service.ListAll(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Appointments fetched.", list)
}
