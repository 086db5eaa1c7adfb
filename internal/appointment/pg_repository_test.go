package appointment

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-portal-scheduling/internal/config"
	"github.com/hackgods/hospital-portal-scheduling/internal/db"
	"github.com/hackgods/hospital-portal-scheduling/internal/events"
	"github.com/hackgods/hospital-portal-scheduling/internal/policy"
	redisclient "github.com/hackgods/hospital-portal-scheduling/internal/redis"
	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

// POSTGRES_TEST_DSN points at a throwaway database. Every test truncates it.
const pgTestDSNEnv = "POSTGRES_TEST_DSN"

type pgFixture struct {
	pool *pgxpool.Pool
	repo *PgRepository
	svc  *Service
}

func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()

	dsn := os.Getenv(pgTestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping postgres tests", pgTestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, time.UTC)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		TRUNCATE event_logs, payments, appointments, hospital_doctor, doctors, hospitals, users
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `ALTER SEQUENCE appointment_number_seq RESTART WITH 1`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, role) VALUES
			(1, 'Ada', 'Admin', 'admin@example.com', 'Admin'),
			(2, 'Sam', 'Staff', 'staff@example.com', 'Staff'),
			(10, 'Pat', 'Ient', 'pat@example.com', 'Patient'),
			(11, 'Oth', 'Er', 'other@example.com', 'Patient')
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, role)
		SELECT n, 'Load', 'Patient' || n, 'load' || n || '@example.com', 'Patient'
		FROM generate_series(100, 124) AS n
	`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO doctors (id, title, name) VALUES ($1, 'Dr.', 'Ada Lovelace')`, doctorID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO hospitals (id, name) VALUES ($1, 'General')`, hospitalID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO hospital_doctor (doctor_id, hospital_id, availability_start_time, availability_end_time)
		VALUES ($1, $2, '09:00', '17:00')
	`, doctorID, hospitalID)
	require.NoError(t, err)

	repo := NewPgRepository(pool)
	svc := NewService(repo, redisclient.NoopLocker{}, events.NewMemoryPublisher(), config.Config{Location: time.UTC}, zerolog.Nop()).
		WithClock(func() time.Time { return fixedNow })

	return &pgFixture{pool: pool, repo: repo, svc: svc}
}

func (f *pgFixture) book(t *testing.T, actor policy.Actor, date, at string) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), actor, BookRequest{
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		Date:       date,
		Time:       at,
	})
	require.NoError(t, err)
	return appt
}

func (f *pgFixture) activeAt(t *testing.T, date, clock string) int {
	t.Helper()
	var n int
	err := f.pool.QueryRow(context.Background(), `
		SELECT count(*) FROM appointments
		WHERE doctor_id = $1 AND hospital_id = $2
		  AND appointment_date = $3::date AND appointment_time = $4::time
		  AND status <> 'Cancelled'
	`, doctorID, hospitalID, date, clock).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestPgBook_ConcurrentSameSlot(t *testing.T) {
	f := newPgFixture(t)

	const attempts = 25
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  []*Appointment
		conflicts  int
		unexpected []error
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			appt, err := f.svc.Book(context.Background(), policy.Actor{UserID: userID, Role: policy.RolePatient}, BookRequest{
				DoctorID: doctorID, HospitalID: hospitalID, Date: tomorrow, Time: "11:00 AM",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes = append(successes, appt)
			case KindOf(err) == KindConflict:
				conflicts++
			default:
				unexpected = append(unexpected, err)
			}
		}(int64(100 + i))
	}
	wg.Wait()

	require.Empty(t, unexpected)
	require.Len(t, successes, 1)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.activeAt(t, tomorrow, "11:00"))
}

func TestPgBook_NumbersAreSequential(t *testing.T) {
	f := newPgFixture(t)

	first := f.book(t, patient, tomorrow, "09:00 AM")
	second := f.book(t, other, tomorrow, "09:30 AM")

	assert.Equal(t, "APPT-NO-1", first.Number)
	assert.Equal(t, "APPT-NO-2", second.Number)
	assert.True(t, strings.HasPrefix(second.Number, "APPT-NO-"))
	assert.Equal(t, StatusPending, first.Status)
}

func TestPgCancel_CompletedLeavesPaymentUntouched(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	appt := f.book(t, patient, tomorrow, "10:00 AM")
	_, err := f.svc.CreatePayment(ctx, patient, appt.ID, 120, "")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, appt.ID, "Completed")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, patient, appt.ID)
	require.ErrorIs(t, err, ErrCancelCompleted)

	detail, err := f.repo.GetAppointmentDetail(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, detail.Status)
	require.NotNil(t, detail.Payment)
	assert.Equal(t, PaymentPending, detail.Payment.Status)
	assert.InDelta(t, 120.0, detail.Payment.Amount, 0.001)
}

func TestPgCancel_FailsPaymentAndFreesSlot(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	first := f.book(t, patient, tomorrow, "10:00 AM")
	_, err := f.svc.CreatePayment(ctx, patient, first.ID, 80, "")
	require.NoError(t, err)

	detail, err := f.svc.Cancel(ctx, patient, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, detail.Status)
	require.NotNil(t, detail.Payment)
	assert.Equal(t, PaymentFailed, detail.Payment.Status)

	second := f.book(t, other, tomorrow, "10:00 AM")
	assert.Equal(t, "APPT-NO-2", second.Number)
	assert.Equal(t, 1, f.activeAt(t, tomorrow, "10:00"))

	// Reactivating the cancelled booking would double book the slot.
	_, err = f.svc.UpdateStatus(ctx, admin, first.ID, "Pending")
	require.ErrorIs(t, err, ErrSlotAlreadyBooked)

	stored, err := f.repo.GetAppointmentByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestPgRepository_ConstraintErrors(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	_, err := f.repo.CreateAppointment(ctx, NewAppointment{
		UserID: 999, DoctorID: doctorID, HospitalID: hospitalID, Date: date, Time: schedule.NewTimeOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.repo.CreateAppointment(ctx, NewAppointment{
		UserID: patient.UserID, DoctorID: 404, HospitalID: hospitalID, Date: date, Time: schedule.NewTimeOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrDoctorHospitalMissing)

	appt, err := f.repo.CreateAppointment(ctx, NewAppointment{
		UserID: patient.UserID, DoctorID: doctorID, HospitalID: hospitalID, Date: date, Time: schedule.NewTimeOfDay(9, 0),
	})
	require.NoError(t, err)

	_, err = f.repo.CreateAppointment(ctx, NewAppointment{
		UserID: other.UserID, DoctorID: doctorID, HospitalID: hospitalID, Date: date, Time: schedule.NewTimeOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	_, err = f.repo.CreatePayment(ctx, Payment{AppointmentID: appt.ID, Amount: 50, Status: PaymentPending})
	require.NoError(t, err)
	_, err = f.repo.CreatePayment(ctx, Payment{AppointmentID: appt.ID, Amount: 50, Status: PaymentPending})
	assert.ErrorIs(t, err, ErrPaymentExists)
	_, err = f.repo.CreatePayment(ctx, Payment{AppointmentID: 404, Amount: 50, Status: PaymentPending})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
