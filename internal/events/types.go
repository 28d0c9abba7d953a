package events

import "time"

// PaymentConfirmedV1 is emitted once per appointment when its payment moves to paid.
type PaymentConfirmedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	Provider      string    `json:"provider"`
	OrderID       string    `json:"order_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	DoctorName    string    `json:"doctor_name"`
	DoctorAddress []string  `json:"doctor_address,omitempty"`
	SlotDate      string    `json:"slot_date"`
	SlotTime      string    `json:"slot_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentConfirmedType names PaymentConfirmedV1 on queues.
const PaymentConfirmedType = "payment_confirmed.v1"
