package accounts

import "github.com/wolfman30/clinic-booking/internal/apperr"

var (
	// ErrEmailTaken is returned when an account with the email already exists
	ErrEmailTaken = apperr.Conflict("An account with this email already exists. Please log in.")

	// ErrPatientNotFound is returned when a patient is not found
	ErrPatientNotFound = apperr.NotFound("Patient not found.")

	// ErrDoctorNotFound is returned when a doctor is not found
	ErrDoctorNotFound = apperr.NotFound("Doctor not found.")

	ErrInvalidName        = apperr.Validation("Name is required.")
	ErrInvalidDateOfBirth = apperr.Validation("Date of birth must be formatted YYYY-MM-DD.")
	ErrMissingSpeciality  = apperr.Validation("Speciality query parameter is required.")
)
