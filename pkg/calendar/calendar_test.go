package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateSlotsCoversBusinessWindow(t *testing.T) {
	w := DefaultBusinessWindow(time.UTC)
	from := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	slots := w.CandidateSlots(from)

	assert.Len(t, slots, 9*3) // 9am-6pm hourly, 3 days
	assert.Equal(t, 9, slots[0].Start.Hour())
	assert.Equal(t, 17, slots[8].Start.Hour())
}

func TestMockListAndBook(t *testing.T) {
	ctx := context.Background()
	m := NewMock(DefaultBusinessWindow(time.UTC))

	from := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)

	slots, err := m.ListAvailableSlots(ctx, from, to)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	target := slots[0]
	ev, err := m.CreateEvent(ctx, target, "Apartment viewing", "Jane Doe", "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", ev.AttendeeName)

	after, err := m.ListAvailableSlots(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, after, len(slots)-1)
}

func TestMockRejectsDoubleBooking(t *testing.T) {
	ctx := context.Background()
	m := NewMock(DefaultBusinessWindow(time.UTC))
	from := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	slot := Slot{Start: from, End: from.Add(time.Hour)}

	_, err := m.CreateEvent(ctx, slot, "x", "a", "b")
	require.NoError(t, err)

	_, err = m.CreateEvent(ctx, slot, "x", "c", "d")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestFormatSlot(t *testing.T) {
	slot := Slot{Start: time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)}
	assert.Equal(t, "Monday, August 3 at 2:00 PM", FormatSlot(slot, time.UTC))
}
