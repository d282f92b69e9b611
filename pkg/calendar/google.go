package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleProvider books into a single Google Calendar using a service
// account. It implements Provider.
type GoogleProvider struct {
	svc        *calendarv3.Service
	calendarID string
	location   *time.Location
}

// NewGoogleProvider builds a GoogleProvider from service-account JSON
// credentials at credentialsPath, targeting calendarID and interpreting
// naive times in timezone.
func NewGoogleProvider(ctx context.Context, credentialsPath, calendarID, timezone string) (*GoogleProvider, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar: load timezone %q: %w", timezone, err)
	}

	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("calendar: read credentials file: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(raw, calendarv3.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("calendar: parse service account credentials: %w", err)
	}

	svc, err := calendarv3.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("calendar: create google calendar client: %w", err)
	}

	return &GoogleProvider{svc: svc, calendarID: calendarID, location: loc}, nil
}

// ListAvailableSlots queries Google Calendar's freebusy API for busy
// windows in [from, to] and returns the business-window slots not covered
// by any of them.
func (g *GoogleProvider) ListAvailableSlots(ctx context.Context, from, to time.Time) ([]Slot, error) {
	req := &calendarv3.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendarv3.FreeBusyRequestItem{{Id: g.calendarID}},
	}
	resp, err := g.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query: %w", err)
	}

	var busy []Slot
	if cal, ok := resp.Calendars[g.calendarID]; ok {
		for _, p := range cal.Busy {
			start, errS := time.Parse(time.RFC3339, p.Start)
			end, errE := time.Parse(time.RFC3339, p.End)
			if errS != nil || errE != nil {
				continue
			}
			busy = append(busy, Slot{Start: start, End: end})
		}
	}

	window := DefaultBusinessWindow(g.location)
	var free []Slot
	for _, slot := range window.CandidateSlots(from) {
		if slot.Start.Before(from) || slot.Start.After(to) {
			continue
		}
		if !overlapsAny(slot, busy) {
			free = append(free, slot)
		}
	}
	return free, nil
}

// CreateEvent inserts a confirmed booking into Google Calendar.
func (g *GoogleProvider) CreateEvent(ctx context.Context, slot Slot, summary, attendeeName, attendeePhone string) (Event, error) {
	ev := &calendarv3.Event{
		Summary:     summary,
		Description: fmt.Sprintf("Booked for %s (%s)", attendeeName, attendeePhone),
		Start:       &calendarv3.EventDateTime{DateTime: slot.Start.Format(time.RFC3339), TimeZone: g.location.String()},
		End:         &calendarv3.EventDateTime{DateTime: slot.End.Format(time.RFC3339), TimeZone: g.location.String()},
	}

	created, err := g.svc.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}

	return Event{
		ID:            created.Id,
		Summary:       created.Summary,
		Start:         slot.Start,
		End:           slot.End,
		AttendeeName:  attendeeName,
		AttendeePhone: attendeePhone,
	}, nil
}

func overlapsAny(slot Slot, busy []Slot) bool {
	for _, b := range busy {
		if slot.Start.Before(b.End) && b.Start.Before(slot.End) {
			return true
		}
	}
	return false
}
