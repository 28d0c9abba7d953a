package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// AppointmentLister returns a doctor's appointments, newest first, with account details.
type AppointmentLister interface {
	ListForDoctor(ctx context.Context, doctorID string) ([]appointments.Details, error)
}

type Handler struct {
	appointments AppointmentLister
	loc          *time.Location
	now          func() time.Time
	logger       *logging.Logger
}

// NewHandler serves the doctor dashboard with calendar days taken in loc.
func NewHandler(lister AppointmentLister, loc *time.Location, logger *logging.Logger) *Handler {
	if lister == nil {
		panic("dashboard: appointment lister required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{appointments: lister, loc: loc, now: time.Now, logger: logger}
}

// Get handles GET /api/appointment/doctor/dashboard.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RoleDoctor)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := h.appointments.ListForDoctor(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Dashboard data fetched.", Compute(list, h.now(), h.loc))
}
