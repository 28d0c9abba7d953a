package appointments

import (
	"time"

	"github.com/wolfman30/clinic-booking/internal/accounts"
)

// PaymentStatus is unpaid until the payment bridge confirms the order.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Status is the booking state of an appointment.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
)

// Appointment links a patient and a doctor to one slot.
type Appointment struct {
	ID            string        `json:"id" bson:"_id"`
	PatientID     string        `json:"patient_id" bson:"patient_id"`
	DoctorID      string        `json:"doctor_id" bson:"doctor_id"`
	SlotDate      string        `json:"slot_date" bson:"slot_date"`
	SlotTime      string        `json:"slot_time" bson:"slot_time"`
	Amount        int64         `json:"amount" bson:"amount"`
	PaymentStatus PaymentStatus `json:"payment_status" bson:"payment_status"`
	IsCompleted   bool          `json:"is_completed" bson:"is_completed"`
	Status        Status        `json:"status" bson:"status"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

func (a *Appointment) Cancelled() bool { return a.Status == StatusCancelled }

func (a *Appointment) Paid() bool { return a.PaymentStatus == PaymentPaid }

// Details is an appointment expanded with patient and doctor display fields.
type Details struct {
	Appointment
	Patient accounts.PatientSummary `json:"patient"`
	Doctor  accounts.DoctorSummary  `json:"doctor"`
}

// BookRequest is the POST /api/appointment body. The charged amount is always
// the doctor's fee; a non-zero Amount must equal it.
type BookRequest struct {
	DoctorID string `json:"doctor_id"`
	SlotDate string `json:"slot_date"`
	SlotTime string `json:"slot_time"`
	Amount   int64  `json:"amount"`
}
