package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

func newAppointmentInput(userID int64, at schedule.TimeOfDay) NewAppointment {
	return NewAppointment{
		UserID:     userID,
		DoctorID:   1,
		HospitalID: 2,
		Date:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Time:       at,
	}
}

func TestMemoryRepository_NumbersAreUniqueUnderConcurrency(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	numbers := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := repo.CreateAppointment(ctx, newAppointmentInput(int64(i+1), schedule.NewTimeOfDay(9, 0).Add(time.Duration(i)*schedule.SlotStep)))
			if err == nil {
				numbers <- a.Number
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, 16)
}

func TestMemoryRepository_ActiveSlotUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := schedule.NewTimeOfDay(10, 0)

	first, err := repo.CreateAppointment(ctx, newAppointmentInput(1, at))
	require.NoError(t, err)

	_, err = repo.CreateAppointment(ctx, newAppointmentInput(2, at))
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	taken, err := repo.HasActiveBooking(ctx, 1, 2, first.Date, at)
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = repo.UpdateAppointmentStatus(ctx, first.ID, StatusCancelled)
	require.NoError(t, err)

	taken, err = repo.HasActiveBooking(ctx, 1, 2, first.Date, at)
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = repo.CreateAppointment(ctx, newAppointmentInput(2, at))
	assert.NoError(t, err)
}

func TestMemoryRepository_CancelCheckFailureChangesNothing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, err := repo.CreateAppointment(ctx, newAppointmentInput(1, schedule.NewTimeOfDay(10, 0)))
	require.NoError(t, err)
	_, err = repo.CreatePayment(ctx, Payment{AppointmentID: a.ID, Amount: 40, Status: PaymentCompleted})
	require.NoError(t, err)

	guard := errors.New("guard")
	_, err = repo.CancelAppointment(ctx, a.ID, func(*Appointment) error { return guard })
	require.ErrorIs(t, err, guard)

	detail, err := repo.GetAppointmentDetail(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, detail.Status)
	assert.Equal(t, PaymentCompleted, detail.Payment.Status)
	assert.Nil(t, detail.Doctor)
}

func TestMemoryRepository_UpsertAvailabilityIsDestructive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.UpsertAvailability(ctx, Availability{DoctorID: 1, HospitalID: 2, Start: schedule.NewTimeOfDay(9, 0), End: schedule.NewTimeOfDay(12, 0)})
	require.NoError(t, err)
	_, err = repo.UpsertAvailability(ctx, Availability{DoctorID: 1, HospitalID: 2, Start: schedule.NewTimeOfDay(13, 0), End: schedule.NewTimeOfDay(15, 0)})
	require.NoError(t, err)

	got, err := repo.GetAvailability(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, schedule.NewTimeOfDay(13, 0), got.Start)

	_, err = repo.UpsertAvailability(ctx, Availability{DoctorID: 1, HospitalID: 2, Start: schedule.NewTimeOfDay(15, 0), End: schedule.NewTimeOfDay(15, 0)})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = repo.GetAvailability(ctx, 9, 9)
	assert.ErrorIs(t, err, ErrAvailabilityNotFound)
}
