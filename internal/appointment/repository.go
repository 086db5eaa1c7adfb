package appointment

import (
	"context"
	"time"

	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

// Repository contains all storage interactions needed by the service.
// Implementations must reject a second non-cancelled appointment at the same
// (doctor, hospital, date, time) with ErrSlotAlreadyBooked.
type Repository interface {
	// Availability windows
	GetAvailability(ctx context.Context, doctorID, hospitalID int64) (*Availability, error)
	UpsertAvailability(ctx context.Context, a Availability) (*Availability, error)

	// Booking ledger
	ListAppointmentsForDay(ctx context.Context, doctorID, hospitalID int64, date time.Time) ([]AppointmentDetail, error)
	HasActiveBooking(ctx context.Context, doctorID, hospitalID int64, date time.Time, at schedule.TimeOfDay) (bool, error)

	// Creation and reads
	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error)

	// CancelAppointment locks the appointment, runs check against the locked
	// row and, if it passes, cancels it and fails its payment atomically.
	CancelAppointment(ctx context.Context, id int64, check func(*Appointment) error) (*AppointmentDetail, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, status AppointmentStatus) (*AppointmentDetail, error)

	// Payments
	CreatePayment(ctx context.Context, p Payment) (*Payment, error)
	GetPaymentByAppointment(ctx context.Context, appointmentID int64) (*Payment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
