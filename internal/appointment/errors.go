package appointment

import "errors"

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is a classified, user-facing failure. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// AsError extracts the classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindUnknown for storage and other internal failures.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindUnknown
}

var (
	ErrInvalidTimeFormat = newError(KindValidation, "invalid_time_format", "Invalid time format. Use 'HH:MM AM/PM'.")
	ErrInvalidDate       = newError(KindValidation, "invalid_date", "Invalid date. Use 'YYYY-MM-DD'.")
	ErrPastDate          = newError(KindValidation, "past_date", "Appointment date cannot be in the past")
	ErrInvalidStatus     = newError(KindValidation, "invalid_status", "Invalid status. Must be one of: Pending, Completed, Cancelled")
	ErrInvalidWindow     = newError(KindValidation, "invalid_availability_window", "Availability start time must be before end time")
	ErrInvalidAmount     = newError(KindValidation, "invalid_amount", "Payment amount must be greater than zero")
	ErrInvalidPayment    = newError(KindValidation, "invalid_payment_status", "Invalid payment status. Must be one of: Pending, Completed, Failed")
	ErrInvalidQuery      = newError(KindValidation, "invalid_query", "doctor_id and hospital_id must be positive integers")

	ErrNotAuthenticated       = newError(KindAuthorization, "not_authenticated", "Authentication required")
	ErrNotAuthorizedBookOther = newError(KindAuthorization, "forbidden", "Not authorized to book appointments for other users")
	ErrNotAuthorizedCancel    = newError(KindAuthorization, "forbidden", "Not authorized to cancel this appointment")
	ErrNotAuthorizedStatus    = newError(KindAuthorization, "forbidden", "Not authorized to update appointment status")
	ErrNotAuthorizedReceipt   = newError(KindAuthorization, "forbidden", "Not authorized to view this receipt")
	ErrNotAuthorizedView      = newError(KindAuthorization, "forbidden", "Not authorized to view this appointment")
	ErrNotAuthorizedHistory   = newError(KindAuthorization, "forbidden", "Not authorized to view other users' appointments")
	ErrNotAuthorizedListAll   = newError(KindAuthorization, "forbidden", "Not authorized to view all appointments")
	ErrNotAuthorizedSchedule  = newError(KindAuthorization, "forbidden", "Only admin and staff can manage doctor availability")
	ErrNotAuthorizedPayment   = newError(KindAuthorization, "forbidden", "Not authorized to pay for this appointment")

	ErrAvailabilityNotFound  = newError(KindNotFound, "availability_not_found", "Doctor availability not found")
	ErrDoctorHospitalMissing = newError(KindNotFound, "doctor_or_hospital_not_found", "Doctor or hospital not found")
	ErrAppointmentNotFound   = newError(KindNotFound, "appointment_not_found", "Appointment not found")
	ErrPaymentNotFound       = newError(KindNotFound, "payment_not_found", "Payment not found")
	ErrUserNotFound          = newError(KindNotFound, "user_not_found", "User not found")

	ErrSlotAlreadyBooked = newError(KindConflict, "slot_already_booked", "Selected time slot is already booked")
	ErrSlotBeingBooked   = newError(KindConflict, "slot_being_booked", "Slot is currently being booked, please retry shortly")
	ErrAlreadyCancelled  = newError(KindConflict, "already_cancelled", "Appointment is already cancelled")
	ErrCancelCompleted   = newError(KindConflict, "appointment_completed", "Cannot cancel completed appointments")
	ErrCancelPast        = newError(KindConflict, "appointment_in_past", "Cannot cancel past appointments")
	ErrPaymentExists     = newError(KindConflict, "payment_exists", "Payment already exists for this appointment")
)
