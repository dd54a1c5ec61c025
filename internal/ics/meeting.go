package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"meetcal/internal/model"
)

const (
	DefaultDuration  = 60 * time.Minute
	DefaultStartHour = 9
)

// MeetingOptions tune how a MeetingRecord becomes an Event.
type MeetingOptions struct {
	// Duration of the event. Zero means DefaultDuration.
	Duration time.Duration
	// StartHour is used when the record carries no time of day (midnight).
	// Zero means DefaultStartHour.
	StartHour int
	Location  string
	// Attendees are extra addresses added after the record's own.
	Attendees []string
}

// FromMeeting maps a parsed meeting onto a calendar event. The wall-clock
// date of the record is placed in the organizational zone.
func (e *Encoder) FromMeeting(rec model.MeetingRecord, opts MeetingOptions) (Event, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return Event{}, errors.New("meeting record has no title")
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	hour := opts.StartHour
	if hour <= 0 || hour > 23 {
		hour = DefaultStartHour
	}

	d := rec.Date
	if d.IsZero() {
		d = e.cfg.Now()
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), 0, 0, e.loc)
	if start.Hour() == 0 && start.Minute() == 0 {
		start = time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, e.loc)
	}

	attendees := append(rec.AttendeeEmails(), opts.Attendees...)
	return NewEvent(Event{
		Title:          rec.Title,
		Start:          start,
		End:            start.Add(duration),
		Attendees:      attendees,
		Description:    meetingDescription(rec),
		Location:       opts.Location,
		OrganizerName:  e.cfg.OrganizerName,
		OrganizerEmail: e.cfg.OrganizerEmail,
	})
}

// meetingDescription summarizes the record as plain text. The encoder
// escapes the newlines.
func meetingDescription(rec model.MeetingRecord) string {
	parts := []string{rec.Title}
	if len(rec.DiscussionPoints) > 0 {
		parts = append(parts, "", "Discussion:")
		for _, p := range rec.DiscussionPoints {
			parts = append(parts, "- "+p)
		}
	}
	if len(rec.Decisions) > 0 {
		parts = append(parts, "", "Decisions:")
		for _, d := range rec.Decisions {
			parts = append(parts, "- "+d.Description)
		}
	}
	if len(rec.ActionItems) > 0 {
		parts = append(parts, "", "Action Items:")
		for _, item := range rec.ActionItems {
			status := "[ ]"
			if item.Completed {
				status = "[x]"
			}
			line := status + " " + item.Description
			if item.Assignee != "" {
				line += " (" + item.Assignee + ")"
			}
			if item.DueDate != nil {
				line += " - Due " + item.DueDate.Format("Jan 2")
			}
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n")
}

// Slot is one proposed time for a meeting.
type Slot struct {
	Start time.Time
	End   time.Time
}

// ProposeSlots builds one invitation per proposed slot, so attendees can be
// offered several options for the same meeting.
func (e *Encoder) ProposeSlots(title string, slots []Slot, attendees []string, description, location string) ([]Event, error) {
	if len(slots) == 0 {
		return nil, ErrEmptyBatch
	}
	out := make([]Event, 0, len(slots))
	for i, s := range slots {
		n := i + 1
		ev, err := NewEvent(Event{
			Title:          fmt.Sprintf("%s (Option %d)", title, n),
			Start:          s.Start,
			End:            s.End,
			Attendees:      attendees,
			Description:    fmt.Sprintf("%s\n\n(Option %d of %d)", description, n, len(slots)),
			Location:       location,
			OrganizerName:  e.cfg.OrganizerName,
			OrganizerEmail: e.cfg.OrganizerEmail,
		})
		if err != nil {
			return nil, fmt.Errorf("option %d: %w", n, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
