package appointments

import "github.com/wolfman30/clinic-booking/internal/apperr"

var (
	ErrNotFound          = apperr.NotFound("Appointment not found with the provided id.")
	ErrSlotTaken         = apperr.Conflict("Slot is not available. Please choose another time.")
	ErrNotOwner          = apperr.Forbidden("Not authorized to modify this appointment.")
	ErrWrongDoctor       = apperr.Forbidden("Not authorized to approve this appointment.")
	ErrAlreadyCompleted  = apperr.PreconditionFailed("Appointment status is already approved.")
	ErrCancelled         = apperr.PreconditionFailed("Appointment is cancelled.")
	ErrUnpaid            = apperr.PreconditionFailed("Payment is not completed.")
	ErrDoctorUnavailable = apperr.PreconditionFailed("Doctor is not available for booking.")
	ErrInvalidSlotDate   = apperr.Validation("slot_date must be formatted YYYY-MM-DD.")
	ErrInvalidSlotTime   = apperr.Validation("slot_time must be formatted HH:MM or h:MM AM/PM.")
	ErrMissingDoctor     = apperr.Validation("doctor_id is required.")
	ErrInvalidAmount     = apperr.Validation("amount must match the doctor's fee.")
)
