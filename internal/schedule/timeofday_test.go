package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock12(t *testing.T) {
	valid := map[string]TimeOfDay{
		"09:00 AM":  NewTimeOfDay(9, 0),
		"9:30 am":   NewTimeOfDay(9, 30),
		"12:00 AM":  NewTimeOfDay(0, 0),
		"12:15 PM":  NewTimeOfDay(12, 15),
		"04:30 PM":  NewTimeOfDay(16, 30),
		"11:59  PM": NewTimeOfDay(23, 59),
	}
	for in, want := range valid {
		got, err := ParseClock12(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	invalid := []string{
		"25:00 PM", "13:00 PM", "00:30 AM", "10:60 AM", "10:00", "ten AM", "",
		"9:00AM", " 09:00 AM", "09:00 AM ", "09:00 AM\n",
	}
	for _, in := range invalid {
		_, err := ParseClock12(in)
		assert.ErrorIs(t, err, ErrInvalidTimeFormat, in)
	}
}

func TestParseClock_Accepts24Hour(t *testing.T) {
	got, err := ParseClock("17:00")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(17, 0), got)

	got, err = ParseClock("08:30:00")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(8, 30), got)

	_, err = ParseClock("noon")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestTimeOfDay_Clock12RoundTrip(t *testing.T) {
	for _, tod := range GenerateSlots(0, NewTimeOfDay(23, 59)) {
		parsed, err := ParseClock12(tod.Clock12())
		require.NoError(t, err)
		assert.Equal(t, tod, parsed)
	}
}

func TestTimeOfDay_On(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, loc)

	got := NewTimeOfDay(14, 30).On(date)
	assert.Equal(t, time.Date(2025, 6, 1, 14, 30, 0, 0, loc), got)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("01/06/2025", time.UTC)
	assert.Error(t, err)
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	instant := time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, loc), DateOf(instant, loc))
}
