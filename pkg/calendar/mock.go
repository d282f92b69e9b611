package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mock is an in-memory Provider for tests and local development. It starts
// with every slot in its business window available and removes a slot once
// CreateEvent succeeds for it.
type Mock struct {
	mu     sync.Mutex
	window BusinessWindow
	booked map[Slot]bool
	events []Event
}

// NewMock creates a Mock over the given business window.
func NewMock(window BusinessWindow) *Mock {
	return &Mock{window: window, booked: make(map[Slot]bool)}
}

// ListAvailableSlots returns every candidate slot between from and to that
// has not yet been booked.
func (m *Mock) ListAvailableSlots(ctx context.Context, from, to time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var available []Slot
	for _, slot := range m.window.CandidateSlots(from) {
		if slot.Start.Before(from) || slot.Start.After(to) {
			continue
		}
		if !m.booked[slot] {
			available = append(available, slot)
		}
	}
	return available, nil
}

// CreateEvent books slot if it is still free.
func (m *Mock) CreateEvent(ctx context.Context, slot Slot, summary, attendeeName, attendeePhone string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.booked[slot] {
		return Event{}, ErrSlotUnavailable
	}
	m.booked[slot] = true

	ev := Event{
		ID:            uuid.NewString(),
		Summary:       summary,
		Start:         slot.Start,
		End:           slot.End,
		AttendeeName:  attendeeName,
		AttendeePhone: attendeePhone,
	}
	m.events = append(m.events, ev)
	return ev, nil
}

// Events returns every event booked so far, for test assertions.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
