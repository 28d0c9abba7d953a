package accounts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const maxImageBytes = 5 << 20

// SlotViewer exposes a doctor's booked slots grouped by date.
type SlotViewer interface {
	BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error)
}

// ImageStore persists uploaded doctor images and returns their public URL.
type ImageStore interface {
	PutDoctorImage(ctx context.Context, doctorID, contentType string, body io.Reader, size int64) (string, error)
}

// Handler serves the doctor directory, profiles and admin doctor management.
type Handler struct {
	repo   Repository
	slots  SlotViewer
	images ImageStore
	logger *logging.Logger
}

// NewHandler creates a new accounts handler. images may be nil when uploads are not configured.
func NewHandler(repo Repository, slots SlotViewer, images ImageStore, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("accounts: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		slots:  slots,
		images: images,
		logger: logger,
	}
}

// ListDoctors handles GET /api/doctor, optionally filtered by ?speciality=.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	filter := DoctorFilter{AvailableOnly: true}
	message := "Doctor data fetched."
	if q := r.URL.Query(); q.Has("speciality") {
		filter.Speciality = strings.TrimSpace(q.Get("speciality"))
		if filter.Speciality == "" {
			respond.Error(w, r, h.logger, ErrMissingSpeciality)
			return
		}
		message = "Doctors filtered by speciality"
	}

	doctors, err := h.repo.ListDoctors(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if doctors == nil {
		doctors = []*Doctor{}
	}
	respond.OK(w, http.StatusOK, message, doctors)
}

// GetDoctor handles GET /api/doctor/{id}.
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.doctorWithSlots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Doctor data fetched successfully.", doctor)
}

// DoctorProfile handles GET /api/doctor/profile for the signed-in doctor.
func (h *Handler) DoctorProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RoleDoctor)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	doctor, err := h.doctorWithSlots(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Doctor profile data fetched.", doctor)
}

func (h *Handler) doctorWithSlots(ctx context.Context, id string) (*Doctor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrDoctorNotFound
	}
	doctor, err := h.repo.DoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor.SlotsBooked = map[string][]string{}
	if h.slots != nil {
		booked, err := h.slots.BookedSlots(ctx, doctor.ID)
		if err != nil {
			return nil, fmt.Errorf("accounts: booked slots: %w", err)
		}
		if booked != nil {
			doctor.SlotsBooked = booked
		}
	}
	return doctor, nil
}

// GetProfile handles GET /api/profile for the signed-in patient.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RolePatient)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	patient, err := h.repo.PatientByID(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Profile fetched.", patient)
}

// UpdateProfile handles PUT /api/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RolePatient)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var update ProfileUpdate
	if err := respond.Decode(r, &update); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := update.Validate(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	patient, err := h.repo.PatientByID(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	update.Apply(patient)
	if err := h.repo.UpdatePatient(r.Context(), patient); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	h.logger.Info("patient profile updated", "patient_id", patient.ID)
	respond.OK(w, http.StatusOK, "Profile updated successfully.", patient)
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

// SetAvailability handles PATCH /api/admin/doctors/{id}/availability.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if req.Available == nil {
		respond.Error(w, r, h.logger, apperr.Validation("available is required."))
		return
	}

	doctor, err := h.repo.SetDoctorAvailability(r.Context(), chi.URLParam(r, "id"), *req.Available)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.Info("doctor availability changed", "doctor_id", doctor.ID, "available", doctor.Available)
	respond.OK(w, http.StatusOK, "Availability updated.", doctor)
}

// UploadImage handles PUT /api/admin/doctors/{id}/image with the raw image as the body.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		respond.Error(w, r, h.logger, apperr.PreconditionFailed("Image uploads are not configured."))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respond.Error(w, r, h.logger, apperr.Validation("Content-Type must be an image type."))
		return
	}
	if r.ContentLength <= 0 {
		respond.Error(w, r, h.logger, apperr.Validation("Image body is required."))
		return
	}
	if r.ContentLength > maxImageBytes {
		respond.Error(w, r, h.logger, apperr.Validation("Image must be 5MB or smaller."))
		return
	}

	doctorID := chi.URLParam(r, "id")
	if _, err := h.repo.DoctorByID(r.Context(), doctorID); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	url, err := h.images.PutDoctorImage(r.Context(), doctorID, contentType, r.Body, r.ContentLength)
	if err != nil {
		respond.Error(w, r, h.logger, fmt.Errorf("accounts: upload image: %w", err))
		return
	}
	doctor, err := h.repo.SetDoctorImage(r.Context(), doctorID, url)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.Info("doctor image uploaded", "doctor_id", doctorID, "url", url)
	respond.OK(w, http.StatusOK, "Image uploaded.", doctor)
}
