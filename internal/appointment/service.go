package appointment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-portal-scheduling/internal/config"
	"github.com/hackgods/hospital-portal-scheduling/internal/events"
	"github.com/hackgods/hospital-portal-scheduling/internal/policy"
	redisclient "github.com/hackgods/hospital-portal-scheduling/internal/redis"
	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

const (
	consultationShare = 0.8
	serviceShare      = 0.2

	publishTimeout = 2 * time.Second
)

// BookRequest carries the raw booking input. Date is "YYYY-MM-DD", Time is "HH:MM AM/PM".
// UserID is only honoured for privileged actors.
type BookRequest struct {
	UserID     *int64
	DoctorID   int64
	HospitalID int64
	Date       string
	Time       string
	Note       *string
}

// DaySchedule is the classified slot view of one doctor at one hospital on one date.
type DaySchedule struct {
	Date         time.Time
	Availability Availability
	Available    []schedule.Slot
	Unavailable  []schedule.Slot
	Appointments []AppointmentDetail
}

// Receipt is the structured record handed to a receipt renderer.
type Receipt struct {
	AppointmentID        int64
	AppointmentNumber    string
	DoctorName           string
	DoctorSpecialization *string
	HospitalName         string
	PatientName          string
	Date                 time.Time
	Time                 schedule.TimeOfDay
	Status               AppointmentStatus
	PaymentStatus        *PaymentStatus
	ConsultationFee      float64
	ServiceCharge        float64
	TotalAmount          float64
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	publisher events.Publisher
	loc       *time.Location
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, publisher events.Publisher, cfg config.Config, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		loc:       cfg.Clock(),
		now:       time.Now,
		logger:    logger.With().Str("component", "appointment").Logger(),
	}
}

// WithClock replaces the wall clock used for "today" and past checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) today() time.Time {
	return schedule.DateOf(s.clock(), s.loc)
}

// DaySchedule classifies every slot of the doctor's window on the given date.
// Cancelled appointments never occupy a slot. Non-privileged actors only see
// their own appointments in the listing and in slot booking details, but
// classification uses all of them.
func (s *Service) DaySchedule(ctx context.Context, actor policy.Actor, doctorID, hospitalID int64, selectedDate string) (*DaySchedule, error) {
	date, err := schedule.ParseDate(selectedDate, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	avail, err := s.repo.GetAvailability(ctx, doctorID, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	booked, err := s.repo.ListAppointmentsForDay(ctx, doctorID, hospitalID, date)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	ledger := make(schedule.Ledger, len(booked))
	visible := make([]AppointmentDetail, 0, len(booked))
	for _, b := range booked {
		owned := actor.Privileged() || b.UserID == actor.UserID
		if b.Status != StatusCancelled {
			info := schedule.BookingInfo{Status: string(b.Status)}
			if owned {
				info.AppointmentNumber = b.Number
				info.Note = b.Note
			}
			ledger.Book(b.Time, info)
		}
		if owned {
			visible = append(visible, b)
		}
	}

	available, unavailable := schedule.Classify(schedule.GenerateSlots(avail.Start, avail.End), ledger, date, s.clock())

	return &DaySchedule{
		Date:         date,
		Availability: *avail,
		Available:    available,
		Unavailable:  unavailable,
		Appointments: visible,
	}, nil
}

// Book creates a Pending appointment. The date may not be before today; a
// time earlier today is accepted. Storage uniqueness is the final guard
// against double booking, the slot lock only narrows the race.
func (s *Service) Book(ctx context.Context, actor policy.Actor, req BookRequest) (*Appointment, error) {
	target := actor.UserID
	if req.UserID != nil && *req.UserID != actor.UserID {
		if !policy.Can(actor, policy.ActionBookForOther, *req.UserID) {
			return nil, ErrNotAuthorizedBookOther
		}
		target = *req.UserID
	}
	if !policy.Can(actor, policy.ActionBook, target) {
		return nil, ErrNotAuthenticated
	}

	at, err := schedule.ParseClock12(req.Time)
	if err != nil {
		return nil, ErrInvalidTimeFormat
	}

	date, err := schedule.ParseDate(req.Date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if date.Before(s.today()) {
		return nil, ErrPastDate
	}

	if _, err := s.repo.GetAvailability(ctx, req.DoctorID, req.HospitalID); err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	var created *Appointment

	key := redisclient.SlotKey(req.DoctorID, req.HospitalID, date, at.Clock24())
	insert := func(lockCtx context.Context) error {
		taken, err := s.repo.HasActiveBooking(lockCtx, req.DoctorID, req.HospitalID, date, at)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotAlreadyBooked
		}

		appt, err := s.repo.CreateAppointment(lockCtx, NewAppointment{
			UserID:     target,
			DoctorID:   req.DoctorID,
			HospitalID: req.HospitalID,
			Date:       date,
			Time:       at,
			Note:       req.Note,
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	}

	err = s.locker.WithSlotLock(ctx, key, insert)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		s.logger.Warn().Err(err).Str("slot", key).Msg("slot lock unavailable, relying on storage uniqueness")
		err = insert(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if KindOf(err) != KindUnknown {
			return nil, err
		}
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	s.logEvent(ctx, &created.ID, events.TypeAppointmentBooked, map[string]any{
		"appointment_number": created.Number,
		"user_id":            created.UserID,
		"doctor_id":          created.DoctorID,
		"hospital_id":        created.HospitalID,
		"appointment_date":   created.Date.Format(schedule.DateLayout),
		"appointment_time":   created.Time.Clock12(),
		"booked_by":          actor.UserID,
	})

	return created, nil
}

// cancelGuard runs against the row locked for cancellation.
func (s *Service) cancelGuard(a *Appointment) error {
	switch a.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusCompleted:
		return ErrCancelCompleted
	}
	if a.StartsAt(s.loc).Before(s.clock()) {
		return ErrCancelPast
	}
	return nil
}

// Cancel cancels an appointment and fails its payment in one unit.
func (s *Service) Cancel(ctx context.Context, actor policy.Actor, id int64) (*AppointmentDetail, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !policy.Can(actor, policy.ActionCancel, appt.UserID) {
		return nil, ErrNotAuthorizedCancel
	}

	detail, err := s.repo.CancelAppointment(ctx, id, s.cancelGuard)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	payload := map[string]any{
		"appointment_number": detail.Number,
		"cancelled_by":       actor.UserID,
	}
	if detail.Payment != nil {
		payload["payment_status"] = detail.Payment.Status
	}
	s.logEvent(ctx, &detail.ID, events.TypeAppointmentCancelled, payload)

	return detail, nil
}

// UpdateStatus is the privileged override: any status may move to any other.
func (s *Service) UpdateStatus(ctx context.Context, actor policy.Actor, id int64, status string) (*AppointmentDetail, error) {
	if !policy.Can(actor, policy.ActionUpdateStatus, 0) {
		return nil, ErrNotAuthorizedStatus
	}

	newStatus, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	before, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	detail, err := s.repo.UpdateAppointmentStatus(ctx, id, newStatus)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, &detail.ID, events.TypeAppointmentStatusUpdated, map[string]any{
		"appointment_number": detail.Number,
		"from":               before.Status,
		"to":                 detail.Status,
		"updated_by":         actor.UserID,
	})

	return detail, nil
}

// ReceiptData builds the receipt record. The payment amount is the total,
// split 80/20 into consultation fee and service charge.
func (s *Service) ReceiptData(ctx context.Context, actor policy.Actor, id int64) (*Receipt, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !policy.Can(actor, policy.ActionViewReceipt, detail.UserID) {
		return nil, ErrNotAuthorizedReceipt
	}

	return BuildReceipt(detail), nil
}

// BuildReceipt derives a Receipt from a loaded appointment.
func BuildReceipt(d *AppointmentDetail) *Receipt {
	r := &Receipt{
		AppointmentID:     d.ID,
		AppointmentNumber: d.Number,
		Date:              d.Date,
		Time:              d.Time,
		Status:            d.Status,
	}
	if d.Doctor != nil {
		r.DoctorName = d.Doctor.DisplayName()
		r.DoctorSpecialization = d.Doctor.Specialization
	}
	if d.Hospital != nil {
		r.HospitalName = d.Hospital.Name
	}
	if d.User != nil {
		r.PatientName = d.User.FullName()
	}
	if d.Payment != nil {
		status := d.Payment.Status
		r.PaymentStatus = &status
		r.TotalAmount = d.Payment.Amount
		r.ConsultationFee = roundCents(d.Payment.Amount * consultationShare)
		r.ServiceCharge = roundCents(d.Payment.Amount * serviceShare)
	}
	return r
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Service) GetAppointment(ctx context.Context, actor policy.Actor, id int64) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	if !policy.Can(actor, policy.ActionViewAppointment, detail.UserID) {
		return nil, ErrNotAuthorizedView
	}
	return detail, nil
}

// History lists the appointments of userID, or of the actor when userID is nil.
func (s *Service) History(ctx context.Context, actor policy.Actor, userID *int64) ([]AppointmentDetail, error) {
	target := actor.UserID
	if userID != nil {
		target = *userID
	}
	if !policy.Can(actor, policy.ActionViewAppointment, target) {
		return nil, ErrNotAuthorizedHistory
	}

	list, err := s.repo.ListAppointments(ctx, ListFilter{UserID: &target})
	if err != nil {
		return nil, fmt.Errorf("list appointment history: %w", err)
	}
	return list, nil
}

func (s *Service) ListAppointments(ctx context.Context, actor policy.Actor, f ListFilter) ([]AppointmentDetail, error) {
	if !policy.Can(actor, policy.ActionListAll, 0) {
		return nil, ErrNotAuthorizedListAll
	}

	list, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

// SetAvailability replaces the (doctor, hospital) window. Times accept
// "HH:MM AM/PM" or 24-hour "15:04".
func (s *Service) SetAvailability(ctx context.Context, actor policy.Actor, doctorID, hospitalID int64, start, end string) (*Availability, error) {
	if !policy.Can(actor, policy.ActionManageAvailability, 0) {
		return nil, ErrNotAuthorizedSchedule
	}

	from, err := schedule.ParseClock(start)
	if err != nil {
		return nil, ErrInvalidTimeFormat
	}
	to, err := schedule.ParseClock(end)
	if err != nil {
		return nil, ErrInvalidTimeFormat
	}
	if from >= to {
		return nil, ErrInvalidWindow
	}

	saved, err := s.repo.UpsertAvailability(ctx, Availability{
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		Start:      from,
		End:        to,
	})
	if err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}

	s.logEvent(ctx, nil, events.TypeAvailabilityUpdated, map[string]any{
		"doctor_id":   doctorID,
		"hospital_id": hospitalID,
		"start_time":  saved.Start.Clock12(),
		"end_time":    saved.End.Clock12(),
		"updated_by":  actor.UserID,
	})

	return saved, nil
}

func (s *Service) GetAvailability(ctx context.Context, doctorID, hospitalID int64) (*Availability, error) {
	a, err := s.repo.GetAvailability(ctx, doctorID, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return a, nil
}

// CreatePayment attaches the single payment of an appointment. Only
// privileged actors may record a payment as anything other than Pending.
func (s *Service) CreatePayment(ctx context.Context, actor policy.Actor, appointmentID int64, amount float64, status string) (*Payment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !policy.Can(actor, policy.ActionCreatePayment, appt.UserID) {
		return nil, ErrNotAuthorizedPayment
	}

	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	paymentStatus, err := ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	if paymentStatus != PaymentPending && !actor.Privileged() {
		return nil, ErrNotAuthorizedPayment
	}

	p, err := s.repo.CreatePayment(ctx, Payment{
		AppointmentID: appointmentID,
		Amount:        roundCents(amount),
		Status:        paymentStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logEvent(ctx, &appointmentID, events.TypePaymentCreated, map[string]any{
		"payment_id":     p.ID,
		"amount":         p.Amount,
		"payment_status": p.Status,
	})

	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, actor policy.Actor, appointmentID int64) (*Payment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !policy.Can(actor, policy.ActionViewAppointment, appt.UserID) {
		return nil, ErrNotAuthorizedView
	}

	p, err := s.repo.GetPaymentByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// logEvent records the event in the event log and publishes it. Failures are
// logged and never fail the operation that produced the event.
func (s *Service) logEvent(ctx context.Context, appointmentID *int64, eventType string, payload map[string]any) {
	var id int64
	if appointmentID != nil {
		id = *appointmentID
	}

	ev, err := events.New(eventType, id, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	if err := s.repo.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       ev.Payload,
		CreatedAt:     ev.OccurredAt,
	}); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("appointment_id", id).Msg("failed to insert event log")
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Int64("appointment_id", id).Msg("failed to publish event")
	}
}
