package auth

import (
	"net/http"

	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Handler serves /api/auth and admin doctor provisioning.
type Handler struct {
	service *Service
	cookies CookiePolicy
	logger  *logging.Logger
}

func NewHandler(service *Service, cookies CookiePolicy, logger *logging.Logger) *Handler {
	if service == nil {
		panic("auth: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, cookies: cookies, logger: logger}
}

// RegisterPatient handles POST /api/auth/register-patient.
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRegistration
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.service.RegisterPatient(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.cookies.Set(w, identity.RolePatient, session.Token, session.ExpiresAt)
	respond.OK(w, http.StatusCreated, "Patient registered successfully. Welcome aboard!", session.Account)
}

// RegisterDoctor handles POST /api/auth/register-doctor.
func (h *Handler) RegisterDoctor(w http.ResponseWriter, r *http.Request) {
	var req DoctorRegistration
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.service.RegisterDoctor(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.cookies.Set(w, identity.RoleDoctor, session.Token, session.ExpiresAt)
	respond.OK(w, http.StatusCreated, "Doctor registered successfully.", session.Account)
}

// LoginPatient handles POST /api/auth/login-patient.
func (h *Handler) LoginPatient(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, identity.RolePatient, "Logged in successfully. Welcome back!")
}

// LoginDoctor handles POST /api/auth/login-doctor.
func (h *Handler) LoginDoctor(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, identity.RoleDoctor, "Doctor logged in successfully.")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, role identity.Role, message string) {
	var creds Credentials
	if err := respond.Decode(r, &creds); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	session, err := h.service.Login(r.Context(), role, creds)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.cookies.Set(w, role, session.Token, session.ExpiresAt)
	respond.OK(w, http.StatusOK, message, session.Account)
}

// LogoutPatient handles GET /api/auth/logout-patient. Always succeeds.
func (h *Handler) LogoutPatient(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w, identity.RolePatient)
	respond.OK(w, http.StatusOK, "Logged out successfully. See you again soon!", nil)
}

// LogoutDoctor handles GET /api/auth/logout-doctor. Always succeeds.
func (h *Handler) LogoutDoctor(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w, identity.RoleDoctor)
	respond.OK(w, http.StatusOK, "Logged out successfully. Thank you!", nil)
}

// ProvisionDoctor handles POST /api/admin/doctors.
func (h *Handler) ProvisionDoctor(w http.ResponseWriter, r *http.Request) {
	var req DoctorRegistration
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	doctor, err := h.service.ProvisionDoctor(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusCreated, "Doctor added successfully.", doctor)
}
