package payments

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// FakePaymentsHandler exposes a tiny demo page to "pay" fake gateway orders.
// Only mount this handler when ALLOW_FAKE_PAYMENTS=true.
type FakePaymentsHandler struct {
	gateway *FakeGateway
	bridge  *Bridge
	logger  *logging.Logger
}

func NewFakePaymentsHandler(gateway *FakeGateway, bridge *Bridge, logger *logging.Logger) *FakePaymentsHandler {
	if gateway == nil || bridge == nil {
		panic("payments: fake handler requires gateway and bridge")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FakePaymentsHandler{gateway: gateway, bridge: bridge, logger: logger}
}

func (h *FakePaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/payments/{orderID}", h.HandleCheckout)
	r.Post("/payments/{orderID}/complete", h.HandleComplete)
	return r
}

const fakePageStyle = `body{font-family:system-ui,-apple-system,Segoe UI,Roboto,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .btn{background:#111827;color:#fff;padding:12px 16px;border-radius:10px;border:0;cursor:pointer;}
      .muted{color:#6b7280;font-size:14px;}`

func (h *FakePaymentsHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.gateway.FetchOrder(r.Context(), orderID)
	if err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	id := html.EscapeString(order.ID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Demo Appointment Payment</title>
    <style>
      %s
    </style>
  </head>
  <body>
    <h1>Demo Appointment Payment</h1>
    <div class="card">
      <p><strong>Amount:</strong> %s %.2f</p>
      <p class="muted">This is a demo-only payment page (no real payment is processed).</p>
      <form method="POST" action="/demo/payments/%s/complete">
        <button class="btn" type="submit">Pay now</button>
      </form>
      <p class="muted">Order: <code>%s</code> (status %s)</p>
    </div>
  </body>
</html>`, fakePageStyle, html.EscapeString(order.Currency), float64(order.Amount)/100.0, id, id, html.EscapeString(order.Status))
}

// HandleComplete pays the order and settles it through the same verify path
// the API uses.
func (h *FakePaymentsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if err := h.gateway.Complete(orderID); err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	res, err := h.bridge.Verify(r.Context(), orderID)
	if err != nil {
		h.logger.Error("fake payment completion failed", "error", err, "order_id", orderID)
		http.Error(w, "failed to complete payment", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head><meta charset="utf-8" /><title>Payment Completed</title><style>%s</style></head>
  <body>
    <h1>Payment Completed</h1>
    <div class="card">
      <p>Your demo payment is recorded for appointment <code>%s</code>.</p>
      <p class="muted">You can close this tab.</p>
    </div>
  </body>
</html>`, fakePageStyle, html.EscapeString(res.AppointmentID))
}
