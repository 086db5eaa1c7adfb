package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	activeSlotIndex = "appointments_active_slot_uniq"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Helpers

func pgTime(t schedule.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}
}

func fromPgTime(t pgtype.Time) schedule.TimeOfDay {
	return schedule.TimeOfDay(t.Microseconds / 1_000_000)
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var a Availability
	var start, end pgtype.Time

	err := row.Scan(&a.DoctorID, &a.HospitalID, &start, &end, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	a.Start = fromPgTime(start)
	a.End = fromPgTime(end)
	return &a, nil
}

const appointmentColumns = `a.id, a.user_id, a.doctor_id, a.hospital_id, a.appointment_date, a.appointment_time,
	a.status, a.note, a.appointment_number, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var at pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.DoctorID,
		&a.HospitalID,
		&a.Date,
		&at,
		&a.Status,
		&a.Note,
		&a.Number,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Time = fromPgTime(at)
	return &a, nil
}

const detailSelect = `
	SELECT ` + appointmentColumns + `,
		d.title, d.name, d.specialization,
		h.name,
		u.first_name, u.last_name, u.email, u.phone,
		p.id, p.amount, p.payment_status, p.payment_date, p.updated_at
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN hospitals h ON h.id = a.hospital_id
	JOIN users u ON u.id = a.user_id
	LEFT JOIN payments p ON p.appointment_id = a.id`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var at pgtype.Time
	var doc Doctor
	var hosp Hospital
	var user User
	var (
		paymentID      *int64
		paymentAmount  *float64
		paymentStatus  *string
		paymentDate    *time.Time
		paymentUpdated *time.Time
	)

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.DoctorID,
		&d.HospitalID,
		&d.Date,
		&at,
		&d.Status,
		&d.Note,
		&d.Number,
		&d.CreatedAt,
		&d.UpdatedAt,
		&doc.Title,
		&doc.Name,
		&doc.Specialization,
		&hosp.Name,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&paymentID,
		&paymentAmount,
		&paymentStatus,
		&paymentDate,
		&paymentUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Time = fromPgTime(at)
	doc.ID = d.DoctorID
	hosp.ID = d.HospitalID
	user.ID = d.UserID
	d.Doctor = &doc
	d.Hospital = &hosp
	d.User = &user

	if paymentID != nil {
		d.Payment = &Payment{
			ID:            *paymentID,
			AppointmentID: d.ID,
			Amount:        *paymentAmount,
			Status:        PaymentStatus(*paymentStatus),
			Date:          *paymentDate,
			UpdatedAt:     *paymentUpdated,
		}
	}

	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	result := []AppointmentDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func getDetail(ctx context.Context, q querier, id int64) (*AppointmentDetail, error) {
	return scanDetail(q.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id))
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment

	err := row.Scan(&p.ID, &p.AppointmentID, &p.Amount, &p.Status, &p.Date, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return &p, nil
}

// Interface methods

func (r *PgRepository) GetAvailability(ctx context.Context, doctorID, hospitalID int64) (*Availability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT doctor_id, hospital_id, availability_start_time, availability_end_time, updated_at
		FROM hospital_doctor
		WHERE doctor_id = $1 AND hospital_id = $2
	`, doctorID, hospitalID)
	return scanAvailability(row)
}

func (r *PgRepository) UpsertAvailability(ctx context.Context, a Availability) (*Availability, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO hospital_doctor (doctor_id, hospital_id, availability_start_time, availability_end_time, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (doctor_id, hospital_id) DO UPDATE
		SET availability_start_time = EXCLUDED.availability_start_time,
		    availability_end_time = EXCLUDED.availability_end_time,
		    updated_at = now()
		RETURNING doctor_id, hospital_id, availability_start_time, availability_end_time, updated_at
	`, a.DoctorID, a.HospitalID, pgTime(a.Start), pgTime(a.End))

	saved, err := scanAvailability(row)
	if err != nil {
		if pgErr, ok := pgError(err); ok {
			switch pgErr.Code {
			case pgForeignKeyViolation:
				return nil, ErrDoctorHospitalMissing
			case pgCheckViolation:
				return nil, ErrInvalidWindow
			}
		}
		return nil, fmt.Errorf("upsert availability: %w", err)
	}
	return saved, nil
}

func (r *PgRepository) ListAppointmentsForDay(ctx context.Context, doctorID, hospitalID int64, date time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.doctor_id = $1 AND a.hospital_id = $2 AND a.appointment_date = $3
		ORDER BY a.appointment_time, a.id
	`, doctorID, hospitalID, date)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) HasActiveBooking(ctx context.Context, doctorID, hospitalID int64, date time.Time, at schedule.TimeOfDay) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND hospital_id = $2
			  AND appointment_date = $3 AND appointment_time = $4
			  AND status <> 'Cancelled'
		)
	`, doctorID, hospitalID, date, pgTime(at)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments AS a (user_id, doctor_id, hospital_id, appointment_date, appointment_time, status, note)
		VALUES ($1, $2, $3, $4, $5, 'Pending', $6)
		RETURNING `+appointmentColumns,
		in.UserID, in.DoctorID, in.HospitalID, in.Date, pgTime(in.Time), in.Note)

	created, err := scanAppointment(row)
	if err != nil {
		if pgErr, ok := pgError(err); ok {
			switch pgErr.Code {
			case pgUniqueViolation:
				if pgErr.ConstraintName == activeSlotIndex {
					return nil, ErrSlotAlreadyBooked
				}
			case pgForeignKeyViolation:
				if strings.Contains(pgErr.ConstraintName, "user_id") {
					return nil, ErrUserNotFound
				}
				return nil, ErrDoctorHospitalMissing
			}
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	return getDetail(ctx, r.pool, id)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("a.user_id = $%d", *f.UserID)
	}
	if f.Status != nil {
		add("a.status = $%d", string(*f.Status))
	}
	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.HospitalID != nil {
		add("a.hospital_id = $%d", *f.HospitalID)
	}
	if f.StartDate != nil {
		add("a.appointment_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("a.appointment_date <= $%d", *f.EndDate)
	}

	query := detailSelect
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\tORDER BY a.appointment_date DESC, a.appointment_time DESC, a.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id int64, check func(*Appointment) error) (*AppointmentDetail, error) {
	var detail *AppointmentDetail

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1 FOR UPDATE`, id)
		appt, err := scanAppointment(row)
		if err != nil {
			return err
		}

		if err := check(appt); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = 'Cancelled',
			    updated_at = now()
			WHERE id = $1
		`, id); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE payments
			SET payment_status = 'Failed',
			    updated_at = now()
			WHERE appointment_id = $1
		`, id); err != nil {
			return fmt.Errorf("fail payment: %w", err)
		}

		detail, err = getDetail(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, status AppointmentStatus) (*AppointmentDetail, error) {
	var detail *AppointmentDetail

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
		`, id, string(status))
		if err != nil {
			if pgErr, ok := pgError(err); ok && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == activeSlotIndex {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("update appointment status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAppointmentNotFound
		}

		detail, err = getDetail(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

func (r *PgRepository) CreatePayment(ctx context.Context, p Payment) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (appointment_id, amount, payment_status, payment_date, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, appointment_id, amount::float8, payment_status, payment_date, updated_at
	`, p.AppointmentID, p.Amount, string(p.Status))

	created, err := scanPayment(row)
	if err != nil {
		if pgErr, ok := pgError(err); ok {
			switch pgErr.Code {
			case pgUniqueViolation:
				return nil, ErrPaymentExists
			case pgForeignKeyViolation:
				return nil, ErrAppointmentNotFound
			case pgCheckViolation:
				return nil, ErrInvalidAmount
			}
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetPaymentByAppointment(ctx context.Context, appointmentID int64) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, amount::float8, payment_status, payment_date, updated_at
		FROM payments
		WHERE appointment_id = $1
	`, appointmentID)
	return scanPayment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
