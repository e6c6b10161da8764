package scheduling

import "errors"

// Sentinel errors returned by the scheduling service. Handlers map these to
// user-facing responses; tests tell failure modes apart with errors.Is.
var (
	// ErrDoctorNotFound means the doctor id does not exist or the user is
	// not a doctor.
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrInvalidDateTime means the submitted date or time did not parse.
	ErrInvalidDateTime = errors.New("invalid date or time format")

	// ErrPastTime means the requested instant is not strictly in the future.
	ErrPastTime = errors.New("appointment time must be in the future")

	// ErrTimeSlotTaken means the doctor already holds a pending or completed
	// appointment at the exact requested instant.
	ErrTimeSlotTaken = errors.New("doctor is already booked at this time")

	// ErrAppointmentNotFound covers a missing id, an appointment owned by
	// someone else, and an appointment whose status excludes the operation.
	// The three are deliberately indistinguishable to the caller.
	ErrAppointmentNotFound = errors.New("appointment not found")
)
