package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/hackgods/hospital-portal-scheduling/internal/appointment"
	"github.com/hackgods/hospital-portal-scheduling/internal/receipt"
	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

func dayScheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := parseIDParam(r, "doctor_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}

		hospitalID, err := parseOptionalInt(r, "hospital_id")
		if err != nil || hospitalID == nil {
			writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospital_id must be a positive integer")
			return
		}

		selectedDate := r.URL.Query().Get("selected_date")
		if selectedDate == "" {
			writeError(w, http.StatusBadRequest, "invalid_date", "selected_date is required")
			return
		}

		day, err := svc.DaySchedule(r.Context(), actorFrom(r), doctorID, *hospitalID, selectedDate)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve appointments")
			return
		}

		writeJSON(w, http.StatusOK, DayScheduleResponse{
			AvailableSlots:   day.Available,
			UnavailableSlots: day.Unavailable,
			Appointments:     newAppointmentList(day.Appointments),
		})
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.Book(r.Context(), actorFrom(r), appointment.BookRequest{
			UserID:     req.UserID,
			DoctorID:   req.DoctorID,
			HospitalID: req.HospitalID,
			Date:       req.AppointmentDate,
			Time:       req.AppointmentTime,
			Note:       req.Note,
		})
		if err != nil {
			handleServiceError(w, r, err, "Could not book appointment")
			return
		}

		writeJSON(w, http.StatusCreated, BookAppointmentResponse{
			Message:           "Appointment booked successfully",
			AppointmentNumber: appt.Number,
			AppointmentID:     appt.ID,
		})
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		detail, err := svc.Cancel(r.Context(), actorFrom(r), id)
		if err != nil {
			handleServiceError(w, r, err, "Could not cancel appointment due to database error")
			return
		}

		details := CancelDetails{
			AppointmentSummary: newSummary(detail),
			Status:             string(detail.Status),
		}
		if detail.Payment != nil {
			status := string(detail.Payment.Status)
			details.PaymentStatus = &status
		}

		writeJSON(w, http.StatusOK, CancelResponse{
			Message:            "Appointment cancelled successfully",
			AppointmentID:      detail.ID,
			AppointmentNumber:  detail.Number,
			AppointmentDetails: details,
		})
	}
}

func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		var req UpdateStatusRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		detail, err := svc.UpdateStatus(r.Context(), actorFrom(r), id, req.Status)
		if err != nil {
			handleServiceError(w, r, err, "Could not update appointment status due to database error")
			return
		}

		writeJSON(w, http.StatusOK, UpdateStatusResponse{
			Message:            "Appointment status updated successfully",
			AppointmentID:      detail.ID,
			AppointmentNumber:  detail.Number,
			NewStatus:          string(detail.Status),
			AppointmentDetails: newSummary(detail),
		})
	}
}

func receiptHandler(svc *appointment.Service, renderer receipt.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		data, err := svc.ReceiptData(r.Context(), actorFrom(r), id)
		if err != nil {
			handleServiceError(w, r, err, "Database error occurred while generating receipt")
			return
		}

		var buf bytes.Buffer
		if err := renderer.Render(&buf, data); err != nil {
			handleServiceError(w, r, err, "Could not generate receipt")
			return
		}

		w.Header().Set("Content-Type", renderer.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, receipt.Filename(renderer, data.AppointmentNumber)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		detail, err := svc.GetAppointment(r.Context(), actorFrom(r), id)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve appointment")
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(*detail))
	}
}

func historyHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseOptionalInt(r, "user_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", err.Error())
			return
		}

		list, err := svc.History(r.Context(), actorFrom(r), userID)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve appointments")
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentList(list))
	}
}

func listAppointmentsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r, loc)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve appointments")
			return
		}

		list, err := svc.ListAppointments(r.Context(), actorFrom(r), filter)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve appointments")
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentList(list))
	}
}

func setAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID, ok := pairParams(w, r)
		if !ok {
			return
		}

		var req AvailabilityRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		saved, err := svc.SetAvailability(r.Context(), actorFrom(r), doctorID, hospitalID, req.StartTime, req.EndTime)
		if err != nil {
			handleServiceError(w, r, err, "Could not update availability")
			return
		}

		writeJSON(w, http.StatusOK, newAvailabilityResponse(saved))
	}
}

func getAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, hospitalID, ok := pairParams(w, r)
		if !ok {
			return
		}

		a, err := svc.GetAvailability(r.Context(), doctorID, hospitalID)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve availability")
			return
		}

		writeJSON(w, http.StatusOK, newAvailabilityResponse(a))
	}
}

func pairParams(w http.ResponseWriter, r *http.Request) (doctorID, hospitalID int64, ok bool) {
	hospitalID, err := parseIDParam(r, "hospital_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hospital_id", err.Error())
		return 0, 0, false
	}
	doctorID, err = parseIDParam(r, "doctor_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
		return 0, 0, false
	}
	return doctorID, hospitalID, true
}

func createPaymentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePaymentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		p, err := svc.CreatePayment(r.Context(), actorFrom(r), req.AppointmentID, req.Amount, req.PaymentStatus)
		if err != nil {
			handleServiceError(w, r, err, "Could not create payment")
			return
		}

		writeJSON(w, http.StatusCreated, newPaymentResponse(p))
	}
}

func getPaymentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		p, err := svc.GetPayment(r.Context(), actorFrom(r), id)
		if err != nil {
			handleServiceError(w, r, err, "Could not retrieve payment")
			return
		}

		writeJSON(w, http.StatusOK, newPaymentResponse(p))
	}
}

// parseListFilter reads the optional /appointments/all query filters.
func parseListFilter(r *http.Request, loc *time.Location) (appointment.ListFilter, error) {
	var f appointment.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		st, err := appointment.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}

	var err error
	if f.DoctorID, err = parseOptionalInt(r, "doctor_id"); err != nil {
		return f, appointment.ErrInvalidQuery
	}
	if f.HospitalID, err = parseOptionalInt(r, "hospital_id"); err != nil {
		return f, appointment.ErrInvalidQuery
	}

	if raw := q.Get("start_date"); raw != "" {
		d, err := schedule.ParseDate(raw, loc)
		if err != nil {
			return f, appointment.ErrInvalidDate
		}
		f.StartDate = &d
	}
	if raw := q.Get("end_date"); raw != "" {
		d, err := schedule.ParseDate(raw, loc)
		if err != nil {
			return f, appointment.ErrInvalidDate
		}
		f.EndDate = &d
	}

	return f, nil
}
