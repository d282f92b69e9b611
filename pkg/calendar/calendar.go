// Package calendar abstracts the external calendar backend: availability
// queries and event creation. The concrete Google Calendar implementation
// lives in google.go; tests and local runs use the in-memory Mock.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSlotUnavailable is returned by CreateEvent when the requested slot has
// since been booked by someone else.
var ErrSlotUnavailable = errors.New("calendar: slot no longer available")

// Slot is one bookable window.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Event is a confirmed booking.
type Event struct {
	ID          string
	Summary     string
	Start       time.Time
	End         time.Time
	AttendeeName  string
	AttendeePhone string
}

// Provider is the calendar backend contract. Every method takes a
// context so a slow or hung backend can be bounded by the caller.
type Provider interface {
	// ListAvailableSlots returns open slots between from and to, inclusive.
	ListAvailableSlots(ctx context.Context, from, to time.Time) ([]Slot, error)

	// CreateEvent books slot for the named attendee. Implementations must
	// return ErrSlotUnavailable (wrapped or bare) if the slot was taken
	// between the availability check and this call.
	CreateEvent(ctx context.Context, slot Slot, summary, attendeeName, attendeePhone string) (Event, error)
}

// BusinessWindow describes the daily bookable window used to generate
// candidate slots, matching the original scheduler's 9am-6pm, 3-day-ahead
// default.
type BusinessWindow struct {
	StartHour   int
	EndHour     int
	SlotMinutes int
	LookaheadDays int
	Location    *time.Location
}

// DefaultBusinessWindow returns the 09:00-18:00, 3-day, hourly-slot default.
func DefaultBusinessWindow(loc *time.Location) BusinessWindow {
	return BusinessWindow{
		StartHour:     9,
		EndHour:       18,
		SlotMinutes:   60,
		LookaheadDays: 3,
		Location:      loc,
	}
}

// CandidateSlots enumerates every slot in w's business window for the next
// w.LookaheadDays days starting from `from`, without checking availability.
func (w BusinessWindow) CandidateSlots(from time.Time) []Slot {
	var slots []Slot
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	for day := 0; day < w.LookaheadDays; day++ {
		date := from.AddDate(0, 0, day).In(loc)
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), w.StartHour, 0, 0, 0, loc)
		dayEnd := time.Date(date.Year(), date.Month(), date.Day(), w.EndHour, 0, 0, 0, loc)
		for t := dayStart; t.Before(dayEnd); t = t.Add(time.Duration(w.SlotMinutes) * time.Minute) {
			slots = append(slots, Slot{Start: t, End: t.Add(time.Duration(w.SlotMinutes) * time.Minute)})
		}
	}
	return slots
}

// FormatSlot renders a slot the way it should be spoken/displayed to a caller.
func FormatSlot(s Slot, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	start := s.Start.In(loc)
	return fmt.Sprintf("%s at %s", start.Format("Monday, January 2"), start.Format("3:04 PM"))
}
