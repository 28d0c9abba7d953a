package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Handler exposes order creation and verification to authenticated patients.
type Handler struct {
	bridge *Bridge
	logger *logging.Logger
}

type verifyRequest struct {
	OrderID string `json:"razorpay_order_id"`
}

func NewHandler(bridge *Bridge, logger *logging.Logger) *Handler {
	if bridge == nil {
		panic("payments: bridge required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{bridge: bridge, logger: logger}
}

// CreateOrder handles POST /api/payment/{id}/order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.RolePatient)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	order, err := h.bridge.CreateOrder(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Payment order created.", order)
}

// Verify handles POST /api/payment/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.Require(r.Context(), identity.RolePatient); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req verifyRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.bridge.Verify(r.Context(), req.OrderID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, "Payment successful.", res)
}
