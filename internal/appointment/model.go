package appointment

import (
	"time"

	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// ParseStatus accepts exactly one of the three appointment statuses.
func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case "":
		return PaymentPending, nil
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return st, nil
	}
	return "", ErrInvalidPayment
}

// Availability is a doctor's daily working window at one hospital.
type Availability struct {
	DoctorID   int64
	HospitalID int64
	Start      schedule.TimeOfDay
	End        schedule.TimeOfDay
	UpdatedAt  time.Time
}

type Doctor struct {
	ID             int64
	Title          string
	Name           string
	Specialization *string
}

// DisplayName is "Dr. Jane Doe".
func (d *Doctor) DisplayName() string {
	if d.Title == "" {
		return d.Name
	}
	return d.Title + " " + d.Name
}

type Hospital struct {
	ID   int64
	Name string
}

type User struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Phone     *string
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Appointment struct {
	ID         int64
	UserID     int64
	DoctorID   int64
	HospitalID int64
	Date       time.Time // calendar date, time fields zero
	Time       schedule.TimeOfDay
	Status     AppointmentStatus
	Note       *string
	Number     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StartsAt is the appointment's date and time in loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Time.On(civilDate(a.Date, loc))
}

type Payment struct {
	ID            int64
	AppointmentID int64
	Amount        float64
	Status        PaymentStatus
	Date          time.Time
	UpdatedAt     time.Time
}

// AppointmentDetail is an appointment with the records shown alongside it.
type AppointmentDetail struct {
	Appointment
	Doctor   *Doctor
	Hospital *Hospital
	User     *User
	Payment  *Payment
}

// NewAppointment is the input to Repository.CreateAppointment.
type NewAppointment struct {
	UserID     int64
	DoctorID   int64
	HospitalID int64
	Date       time.Time
	Time       schedule.TimeOfDay
	Note       *string
}

// ListFilter narrows ListAppointments. Nil fields do not filter.
type ListFilter struct {
	UserID     *int64
	Status     *AppointmentStatus
	DoctorID   *int64
	HospitalID *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// civilDate keeps the calendar day of d and moves it to midnight in loc.
func civilDate(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}
