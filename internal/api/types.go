package api

import (
	"time"

	"github.com/hackgods/hospital-portal-scheduling/internal/appointment"
	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

type BookAppointmentRequest struct {
	UserID          *int64  `json:"user_id" validate:"omitempty,gt=0"`
	DoctorID        int64   `json:"doctor_id" validate:"required,gt=0"`
	HospitalID      int64   `json:"hospital_id" validate:"required,gt=0"`
	AppointmentDate string  `json:"appointment_date" validate:"required"`
	AppointmentTime string  `json:"appointment_time" validate:"required"`
	Note            *string `json:"note" validate:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AvailabilityRequest struct {
	StartTime string `json:"availability_start_time" validate:"required"`
	EndTime   string `json:"availability_end_time" validate:"required"`
}

type CreatePaymentRequest struct {
	AppointmentID int64   `json:"appointment_id" validate:"required,gt=0"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentStatus string  `json:"payment_status" validate:"omitempty,oneof=Pending Completed Failed"`
}

type BookAppointmentResponse struct {
	Message           string `json:"message"`
	AppointmentNumber string `json:"appointment_number"`
	AppointmentID     int64  `json:"appointment_id"`
}

type AppointmentResponse struct {
	AppointmentID        int64     `json:"appointment_id"`
	UserID               int64     `json:"user_id"`
	DoctorID             int64     `json:"doctor_id"`
	HospitalID           int64     `json:"hospital_id"`
	AppointmentDate      string    `json:"appointment_date"`
	AppointmentTime      string    `json:"appointment_time"`
	Status               string    `json:"status"`
	Note                 *string   `json:"note"`
	AppointmentNumber    string    `json:"appointment_number"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	PaymentStatus        *string   `json:"payment_status"`
	TotalAmount          float64   `json:"total_amount"`
	DoctorName           *string   `json:"doctor_name"`
	DoctorSpecialization *string   `json:"doctor_specialization"`
	HospitalName         *string   `json:"hospital_name"`
}

type DayScheduleResponse struct {
	AvailableSlots   []schedule.Slot       `json:"available_slots"`
	UnavailableSlots []schedule.Slot       `json:"unavailable_slots"`
	Appointments     []AppointmentResponse `json:"appointments"`
}

type AppointmentSummary struct {
	DoctorName      *string `json:"doctor_name"`
	HospitalName    *string `json:"hospital_name"`
	AppointmentDate string  `json:"appointment_date"`
	AppointmentTime string  `json:"appointment_time"`
}

type CancelDetails struct {
	AppointmentSummary
	Status        string  `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

type CancelResponse struct {
	Message            string        `json:"message"`
	AppointmentID      int64         `json:"appointment_id"`
	AppointmentNumber  string        `json:"appointment_number"`
	AppointmentDetails CancelDetails `json:"appointment_details"`
}

type UpdateStatusResponse struct {
	Message            string             `json:"message"`
	AppointmentID      int64              `json:"appointment_id"`
	AppointmentNumber  string             `json:"appointment_number"`
	NewStatus          string             `json:"new_status"`
	AppointmentDetails AppointmentSummary `json:"appointment_details"`
}

type AvailabilityResponse struct {
	DoctorID   int64     `json:"doctor_id"`
	HospitalID int64     `json:"hospital_id"`
	StartTime  string    `json:"availability_start_time"`
	EndTime    string    `json:"availability_end_time"`
	SlotCount  int       `json:"slot_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PaymentResponse struct {
	PaymentID     int64     `json:"payment_id"`
	AppointmentID int64     `json:"appointment_id"`
	Amount        float64   `json:"amount"`
	PaymentStatus string    `json:"payment_status"`
	PaymentDate   time.Time `json:"payment_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func newAppointmentResponse(d appointment.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		AppointmentID:     d.ID,
		UserID:            d.UserID,
		DoctorID:          d.DoctorID,
		HospitalID:        d.HospitalID,
		AppointmentDate:   d.Date.Format(schedule.DateLayout),
		AppointmentTime:   d.Time.Clock12(),
		Status:            string(d.Status),
		Note:              d.Note,
		AppointmentNumber: d.Number,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.Payment != nil {
		status := string(d.Payment.Status)
		resp.PaymentStatus = &status
		resp.TotalAmount = d.Payment.Amount
	}
	if d.Doctor != nil {
		name := d.Doctor.DisplayName()
		resp.DoctorName = &name
		resp.DoctorSpecialization = d.Doctor.Specialization
	}
	if d.Hospital != nil {
		name := d.Hospital.Name
		resp.HospitalName = &name
	}
	return resp
}

func newAppointmentList(list []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, d := range list {
		out = append(out, newAppointmentResponse(d))
	}
	return out
}

func newSummary(d *appointment.AppointmentDetail) AppointmentSummary {
	s := AppointmentSummary{
		AppointmentDate: d.Date.Format(schedule.DateLayout),
		AppointmentTime: d.Time.Clock12(),
	}
	if d.Doctor != nil {
		name := d.Doctor.DisplayName()
		s.DoctorName = &name
	}
	if d.Hospital != nil {
		name := d.Hospital.Name
		s.HospitalName = &name
	}
	return s
}

func newAvailabilityResponse(a *appointment.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		DoctorID:   a.DoctorID,
		HospitalID: a.HospitalID,
		StartTime:  a.Start.Clock12(),
		EndTime:    a.End.Clock12(),
		SlotCount:  len(schedule.GenerateSlots(a.Start, a.End)),
		UpdatedAt:  a.UpdatedAt,
	}
}

func newPaymentResponse(p *appointment.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentID:     p.ID,
		AppointmentID: p.AppointmentID,
		Amount:        p.Amount,
		PaymentStatus: string(p.Status),
		PaymentDate:   p.Date,
		UpdatedAt:     p.UpdatedAt,
	}
}
