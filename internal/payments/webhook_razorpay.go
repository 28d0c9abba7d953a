package payments

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/razorpay/razorpay-go/utils"

	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	razorpayProvider     = "razorpay"
	maxWebhookBodyBytes  = 1 << 20
	razorpaySignatureHdr = "X-Razorpay-Signature"
	razorpayEventIDHdr   = "X-Razorpay-Event-Id"
)

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Order struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (e *razorpayEvent) orderID() string {
	if id := e.Payload.Order.Entity.ID; id != "" {
		return id
	}
	return e.Payload.Payment.Entity.OrderID
}

// RazorpayWebhookHandler settles orders from Razorpay's order.paid and
// payment.captured callbacks.
type RazorpayWebhookHandler struct {
	secret    string
	bridge    *Bridge
	processed events.ProcessedTracker
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

func NewRazorpayWebhookHandler(secret string, bridge *Bridge, processed events.ProcessedTracker, m *metrics.BookingMetrics, logger *logging.Logger) *RazorpayWebhookHandler {
	if bridge == nil {
		panic("payments: bridge required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayWebhookHandler{secret: secret, bridge: bridge, processed: processed, metrics: m, logger: logger}
}

func (h *RazorpayWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	defer func() {
		h.metrics.ObserveWebhookLatency(eventType, time.Since(start).Seconds())
	}()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(razorpaySignatureHdr)
	if h.secret == "" || signature == "" || !utils.VerifyWebhookSignature(string(payload), signature, h.secret) {
		h.logger.Warn("razorpay webhook signature rejected", "has_signature", signature != "")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var evt razorpayEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode razorpay event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	eventType = evt.Event

	if evt.Event != "order.paid" && evt.Event != "payment.captured" {
		w.WriteHeader(http.StatusOK)
		return
	}
	orderID := evt.orderID()
	if orderID == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	eventID := strings.TrimSpace(r.Header.Get(razorpayEventIDHdr))
	if eventID == "" {
		eventID = evt.Event + ":" + orderID
	}

	if h.processed != nil {
		if seen, err := h.processed.AlreadyProcessed(r.Context(), razorpayProvider, eventID); err != nil {
			h.logger.Error("processed lookup failed", "error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		} else if seen {
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if _, err := h.bridge.Verify(r.Context(), orderID); err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			// Razorpay retries non-2xx responses.
			h.logger.Error("razorpay webhook verify failed", "error", err, "order_id", orderID, "event_id", eventID)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		h.logger.Warn("razorpay webhook not settled", "error", err, "order_id", orderID, "event_id", eventID)
	}

	if h.processed != nil {
		if _, err := h.processed.MarkProcessed(r.Context(), razorpayProvider, eventID); err != nil {
			h.logger.Warn("failed to record processed razorpay event", "error", err, "event_id", eventID)
		}
	}
	w.WriteHeader(http.StatusOK)
}
