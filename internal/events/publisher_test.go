package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ev, err := New(TypeAppointmentBooked, 42, map[string]any{"appointment_number": "APPT-NO-7"})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeAppointmentBooked, ev.Type)
	assert.Equal(t, "42", ev.Key())
	assert.False(t, ev.OccurredAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "APPT-NO-7", payload["appointment_number"])
}

func TestNew_UnmarshalablePayload(t *testing.T) {
	_, err := New(TypePaymentCreated, 1, map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestEventKey_WithoutAppointment(t *testing.T) {
	ev, err := New(TypeAvailabilityUpdated, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeAvailabilityUpdated, ev.Key())
	assert.Nil(t, ev.Payload)
}

func TestMemoryPublisher_Concurrent(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ev, _ := New(TypeAppointmentBooked, id, nil)
			_ = pub.Publish(ctx, ev)
		}(int64(i))
	}
	wg.Wait()

	assert.Len(t, pub.Events(), 50)
	assert.Len(t, pub.OfType(TypeAppointmentBooked), 50)
	assert.Empty(t, pub.OfType(TypeAppointmentCancelled))
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "appointment-events", "api-server", zerolog.Nop())
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", "api-server", zerolog.Nop())
	assert.Error(t, err)
}

func TestKafkaPublisher_ClosedRejectsPublish(t *testing.T) {
	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "appointment-events", "api-server", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	ev, _ := New(TypeAppointmentCancelled, 3, nil)
	assert.ErrorIs(t, pub.Publish(context.Background(), ev), ErrPublisherClosed)
}

func TestKafkaPublisher_PublishDoesNotWaitForBroker(t *testing.T) {
	pub, err := NewKafkaPublisher([]string{"127.0.0.1:1"}, "appointment-events", "api-server", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	assert.True(t, pub.writer.Async)
	assert.NotNil(t, pub.writer.Completion)

	ev, err := New(TypeAppointmentBooked, 7, map[string]any{"appointment_number": "APPT-NO-7"})
	require.NoError(t, err)

	start := time.Now()
	assert.NoError(t, pub.Publish(context.Background(), ev))
	assert.Less(t, time.Since(start), time.Second)
}
