package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/clinic-booking/internal/events"
)

// PaymentConfirmationEmail builds the message sent to a patient once their
// appointment is paid.
func PaymentConfirmationEmail(evt events.PaymentConfirmedV1) EmailMessage {
	amount := fmt.Sprintf("%d", evt.Amount)
	if evt.Currency != "" {
		amount = evt.Currency + " " + amount
	}
	address := strings.Join(nonEmpty(evt.DoctorAddress), ", ")

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", evt.PatientName)
	fmt.Fprintf(&text, "We received your payment for the appointment with Dr. %s.\n\n", evt.DoctorName)
	fmt.Fprintf(&text, "Date: %s\nTime: %s\n", evt.SlotDate, evt.SlotTime)
	if address != "" {
		fmt.Fprintf(&text, "Location: %s\n", address)
	}
	fmt.Fprintf(&text, "Amount paid: %s\n", amount)
	if evt.OrderID != "" {
		fmt.Fprintf(&text, "Order ID: %s\n", evt.OrderID)
	}
	text.WriteString("\nSee you soon.\n")

	esc := html.EscapeString
	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hi %s,</p>", esc(evt.PatientName))
	fmt.Fprintf(&body, "<p>We received your payment for the appointment with Dr. %s.</p><ul>", esc(evt.DoctorName))
	fmt.Fprintf(&body, "<li>Date: %s</li><li>Time: %s</li>", esc(evt.SlotDate), esc(evt.SlotTime))
	if address != "" {
		fmt.Fprintf(&body, "<li>Location: %s</li>", esc(address))
	}
	fmt.Fprintf(&body, "<li>Amount paid: %s</li>", esc(amount))
	if evt.OrderID != "" {
		fmt.Fprintf(&body, "<li>Order ID: %s</li>", esc(evt.OrderID))
	}
	body.WriteString("</ul><p>See you soon.</p>")

	return EmailMessage{
		To:      evt.PatientEmail,
		ToName:  evt.PatientName,
		Subject: "Payment Confirmation - Appointment with Dr. " + evt.DoctorName,
		Body:    text.String(),
		HTML:    body.String(),
	}
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
