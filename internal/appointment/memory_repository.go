package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

type slotKey struct {
	doctorID   int64
	hospitalID int64
	date       string
	at         schedule.TimeOfDay
}

type pairKey struct {
	doctorID   int64
	hospitalID int64
}

// MemoryRepository is a Repository held in process memory. It enforces the
// same active-slot uniqueness and numbering rules as the Postgres schema.
// Reference rows (doctors, hospitals, users) are optional: when unknown the
// matching detail field stays nil.
type MemoryRepository struct {
	mu sync.RWMutex

	now func() time.Time

	doctors      map[int64]Doctor
	hospitals    map[int64]Hospital
	users        map[int64]User
	availability map[pairKey]Availability
	appointments map[int64]Appointment
	active       map[slotKey]int64
	payments     map[int64]Payment // by appointment id
	events       []EventLog

	nextAppointmentID int64
	nextNumber        int64
	nextPaymentID     int64
	nextEventID       int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:          time.Now,
		doctors:      make(map[int64]Doctor),
		hospitals:    make(map[int64]Hospital),
		users:        make(map[int64]User),
		availability: make(map[pairKey]Availability),
		appointments: make(map[int64]Appointment),
		active:       make(map[slotKey]int64),
		payments:     make(map[int64]Payment),
	}
}

// SetClock overrides the timestamp source.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryRepository) AddDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) AddHospital(h Hospital) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hospitals[h.ID] = h
}

func (r *MemoryRepository) AddUser(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func dateKey(d time.Time) string {
	return d.Format(schedule.DateLayout)
}

func keyOf(a Appointment) slotKey {
	return slotKey{doctorID: a.DoctorID, hospitalID: a.HospitalID, date: dateKey(a.Date), at: a.Time}
}

func (r *MemoryRepository) detail(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if doc, ok := r.doctors[a.DoctorID]; ok {
		d.Doctor = &doc
	}
	if h, ok := r.hospitals[a.HospitalID]; ok {
		d.Hospital = &h
	}
	if u, ok := r.users[a.UserID]; ok {
		d.User = &u
	}
	if p, ok := r.payments[a.ID]; ok {
		d.Payment = &p
	}
	return d
}

func sortDetails(list []AppointmentDetail, less func(a, b AppointmentDetail) bool) {
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}

func (r *MemoryRepository) GetAvailability(_ context.Context, doctorID, hospitalID int64) (*Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.availability[pairKey{doctorID, hospitalID}]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) UpsertAvailability(_ context.Context, a Availability) (*Availability, error) {
	if a.Start >= a.End {
		return nil, ErrInvalidWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a.UpdatedAt = r.now()
	r.availability[pairKey{a.DoctorID, a.HospitalID}] = a
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsForDay(_ context.Context, doctorID, hospitalID int64, date time.Time) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := dateKey(date)
	result := []AppointmentDetail{}
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.HospitalID == hospitalID && dateKey(a.Date) == day {
			result = append(result, r.detail(a))
		}
	}

	sortDetails(result, func(a, b AppointmentDetail) bool {
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (r *MemoryRepository) HasActiveBooking(_ context.Context, doctorID, hospitalID int64, date time.Time, at schedule.TimeOfDay) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.active[slotKey{doctorID: doctorID, hospitalID: hospitalID, date: dateKey(date), at: at}]
	return ok, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	y, m, d := in.Date.Date()
	a := Appointment{
		UserID:     in.UserID,
		DoctorID:   in.DoctorID,
		HospitalID: in.HospitalID,
		Date:       time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Time:       in.Time,
		Status:     StatusPending,
		Note:       in.Note,
	}

	key := keyOf(a)
	if _, taken := r.active[key]; taken {
		return nil, ErrSlotAlreadyBooked
	}

	r.nextAppointmentID++
	r.nextNumber++
	now := r.now()
	a.ID = r.nextAppointmentID
	a.Number = fmt.Sprintf("APPT-NO-%d", r.nextNumber)
	a.CreatedAt = now
	a.UpdatedAt = now

	r.appointments[a.ID] = a
	r.active[key] = a.ID
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentDetail(_ context.Context, id int64) (*AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f ListFilter) ([]AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []AppointmentDetail{}
	for _, a := range r.appointments {
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.HospitalID != nil && a.HospitalID != *f.HospitalID {
			continue
		}
		if f.StartDate != nil && dateKey(a.Date) < dateKey(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && dateKey(a.Date) > dateKey(*f.EndDate) {
			continue
		}
		result = append(result, r.detail(a))
	}

	sortDetails(result, func(a, b AppointmentDetail) bool {
		if da, db := dateKey(a.Date), dateKey(b.Date); da != db {
			return da > db
		}
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return a.ID > b.ID
	})
	return result, nil
}

func (r *MemoryRepository) CancelAppointment(_ context.Context, id int64, check func(*Appointment) error) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	locked := a
	if err := check(&locked); err != nil {
		return nil, err
	}

	now := r.now()
	r.setStatus(&a, StatusCancelled, now)

	if p, ok := r.payments[id]; ok {
		p.Status = PaymentFailed
		p.UpdatedAt = now
		r.payments[id] = p
	}

	d := r.detail(a)
	return &d, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id int64, status AppointmentStatus) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	if a.Status == StatusCancelled && status != StatusCancelled {
		if _, taken := r.active[keyOf(a)]; taken {
			return nil, ErrSlotAlreadyBooked
		}
	}

	r.setStatus(&a, status, r.now())

	d := r.detail(a)
	return &d, nil
}

// setStatus writes a status change and keeps the active-slot index in step.
// Callers hold the write lock.
func (r *MemoryRepository) setStatus(a *Appointment, status AppointmentStatus, now time.Time) {
	key := keyOf(*a)
	if status == StatusCancelled {
		if r.active[key] == a.ID {
			delete(r.active, key)
		}
	} else {
		r.active[key] = a.ID
	}

	a.Status = status
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
}

func (r *MemoryRepository) CreatePayment(_ context.Context, p Payment) (*Payment, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[p.AppointmentID]; !ok {
		return nil, ErrAppointmentNotFound
	}
	if _, exists := r.payments[p.AppointmentID]; exists {
		return nil, ErrPaymentExists
	}

	r.nextPaymentID++
	now := r.now()
	p.ID = r.nextPaymentID
	p.Date = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = PaymentPending
	}

	r.payments[p.AppointmentID] = p
	return &p, nil
}

func (r *MemoryRepository) GetPaymentByAppointment(_ context.Context, appointmentID int64) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[appointmentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}
