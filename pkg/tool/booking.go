package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxdial/scheduler/pkg/calendar"
)

// slotStartLayouts are tried in order when parsing the "slot_start" arg,
// since it may arrive either as a machine-formatted RFC3339 timestamp (set
// via tool_args_map from step_data) or as a naive local time the LLM
// extracted from conversation.
var slotStartLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// CreateBookingTool books a calendar slot for the caller.
type CreateBookingTool struct {
	provider    calendar.Provider
	location    *time.Location
	slotMinutes int
}

// NewCreateBookingTool wraps a calendar.Provider as a Tool.
func NewCreateBookingTool(provider calendar.Provider, location *time.Location, slotMinutes int) *CreateBookingTool {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	return &CreateBookingTool{provider: provider, location: location, slotMinutes: slotMinutes}
}

// Name implements Tool.
func (t *CreateBookingTool) Name() string { return "create_booking" }

// Execute implements Tool. args must contain "slot_start", "attendee_name",
// and "attendee_phone"; "summary" is optional.
func (t *CreateBookingTool) Execute(ctx context.Context, args map[string]string) (Result, error) {
	start, err := t.parseSlotStart(args["slot_start"])
	if err != nil {
		return Result{Intent: "error", Message: "I didn't quite get that time. Could you repeat it?"}, nil
	}

	name := args["attendee_name"]
	phone := args["attendee_phone"]
	if name == "" || phone == "" {
		return Result{Intent: "error", Message: "I still need your name and phone number to confirm the booking."}, nil
	}

	summary := args["summary"]
	if summary == "" {
		summary = "Apartment viewing"
	}

	slot := calendar.Slot{Start: start, End: start.Add(time.Duration(t.slotMinutes) * time.Minute)}

	ev, err := t.provider.CreateEvent(ctx, slot, summary, name, phone)
	if err != nil {
		if errors.Is(err, calendar.ErrSlotUnavailable) {
			return Result{
				Intent:  "unavailable",
				Message: "Sorry, that time was just taken. Would you like to pick another?",
			}, nil
		}
		return Result{}, fmt.Errorf("create_booking: %w", err)
	}

	return Result{
		Intent: "booked",
		Message: fmt.Sprintf("You're all set, %s — I've booked you for %s. We'll see you then!",
			name, calendar.FormatSlot(calendar.Slot{Start: ev.Start, End: ev.End}, t.location)),
		Data: map[string]any{"event_id": ev.ID},
	}, nil
}

func (t *CreateBookingTool) parseSlotStart(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("tool: missing slot_start")
	}
	loc := t.location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range slotStartLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("tool: unparseable slot_start %q", raw)
}
