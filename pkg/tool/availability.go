package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voxdial/scheduler/pkg/calendar"
)

// maxSlotsSpoken bounds how many options are read aloud in one turn.
const maxSlotsSpoken = 5

// CheckAvailabilityTool lists open slots in the calendar's business window.
type CheckAvailabilityTool struct {
	provider calendar.Provider
	window   calendar.BusinessWindow
	now      func() time.Time
}

// NewCheckAvailabilityTool wraps a calendar.Provider as a Tool. now defaults
// to time.Now when nil; tests may override it for deterministic windows.
func NewCheckAvailabilityTool(provider calendar.Provider, window calendar.BusinessWindow, now func() time.Time) *CheckAvailabilityTool {
	if now == nil {
		now = time.Now
	}
	return &CheckAvailabilityTool{provider: provider, window: window, now: now}
}

// Name implements Tool.
func (t *CheckAvailabilityTool) Name() string { return "check_availability" }

// Execute implements Tool. args are currently unused; the window is fixed
// lookahead from now, matching the original 3-day default.
func (t *CheckAvailabilityTool) Execute(ctx context.Context, args map[string]string) (Result, error) {
	from := t.now()
	to := from.AddDate(0, 0, t.window.LookaheadDays)

	slots, err := t.provider.ListAvailableSlots(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("check_availability: %w", err)
	}
	if len(slots) == 0 {
		return Result{
			Intent:  "unavailable",
			Message: "I don't see any open times in the next few days. Would you like me to check further out?",
		}, nil
	}

	shown := slots
	if len(shown) > maxSlotsSpoken {
		shown = shown[:maxSlotsSpoken]
	}

	var parts []string
	for _, s := range shown {
		parts = append(parts, calendar.FormatSlot(s, t.window.Location))
	}

	return Result{
		Intent:  "available",
		Message: "Here are some times that work: " + strings.Join(parts, "; ") + ".",
		Data:    map[string]any{"slot_count": len(slots)},
	}, nil
}
