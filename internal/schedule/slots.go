package schedule

import "time"

// Reasons attached to unavailable slots.
const (
	ReasonPast   = "past"
	ReasonBooked = "booked"
)

// BookingInfo is the display metadata of the appointment occupying a slot.
// Number and note are left empty for callers who may not see the appointment.
type BookingInfo struct {
	AppointmentNumber string  `json:"appointment_number,omitempty"`
	Status            string  `json:"status"`
	Note              *string `json:"note,omitempty"`
}

// Slot is a computed, never persisted, bookable time on a selected date.
type Slot struct {
	Time      TimeOfDay    `json:"time"`
	Available bool         `json:"available"`
	Reason    string       `json:"reason,omitempty"`
	Booking   *BookingInfo `json:"booking,omitempty"`
}

// GenerateSlots expands the window [start, end) into SlotStep-wide slots.
// A trailing partial slot is dropped. start >= end yields no slots.
func GenerateSlots(start, end TimeOfDay) []TimeOfDay {
	if start >= end || !start.Valid() {
		return []TimeOfDay{}
	}

	n := int(end.Sub(start) / SlotStep)
	slots := make([]TimeOfDay, 0, n)
	for cur := start; cur.Add(SlotStep) <= end; cur = cur.Add(SlotStep) {
		slots = append(slots, cur)
	}
	return slots
}

// Ledger indexes the occupying bookings of one (doctor, hospital, date) by time of day.
type Ledger map[TimeOfDay]BookingInfo

// Book records an occupying booking. The first booking at a time wins.
func (l Ledger) Book(at TimeOfDay, info BookingInfo) {
	if _, exists := l[at]; exists {
		return
	}
	l[at] = info
}

// At returns the booking occupying the given time, if any.
func (l Ledger) At(at TimeOfDay) (BookingInfo, bool) {
	info, ok := l[at]
	return info, ok
}

// Classify partitions slots for selectedDate into available and unavailable,
// preserving generation order in both. On the current day a slot at or before
// now is past, and that wins over any booking at the same time.
func Classify(slots []TimeOfDay, ledger Ledger, selectedDate, now time.Time) (available, unavailable []Slot) {
	available = make([]Slot, 0, len(slots))
	unavailable = make([]Slot, 0)

	today := SameDate(selectedDate, now)
	nowTOD := TimeOfDayOf(now)

	for _, at := range slots {
		if today && at <= nowTOD {
			unavailable = append(unavailable, Slot{Time: at, Reason: ReasonPast})
			continue
		}

		if info, booked := ledger.At(at); booked {
			b := info
			unavailable = append(unavailable, Slot{Time: at, Reason: ReasonBooked, Booking: &b})
			continue
		}

		available = append(available, Slot{Time: at, Available: true})
	}

	return available, unavailable
}
