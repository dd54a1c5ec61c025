package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

var (
	// ErrInvalidInterval is returned when an event does not end after it starts.
	ErrInvalidInterval = errors.New("end time must be after start time")
	// ErrInvalidRRule is returned for recurrence rules rrule-go cannot parse.
	ErrInvalidRRule = errors.New("invalid recurrence rule")
)

// Event is a single calendar event ready to be encoded as a VEVENT.
//
// Build it with NewEvent: the constructor checks the interval, normalizes
// attendee addresses and fills UID and CreatedAt. Apart from Sequence (see
// Resend) an Event is not changed after construction.
type Event struct {
	UID   string
	Title string

	// Start and End are emitted in UTC.
	Start time.Time
	End   time.Time

	// Attendees holds bare e-mail addresses in their original order.
	Attendees []string

	Description string
	Location    string

	// OrganizerName / OrganizerEmail fall back to the encoder's defaults when empty.
	OrganizerName  string
	OrganizerEmail string

	CreatedAt time.Time
	Sequence  int

	// RRule is an optional RFC 5545 recurrence rule without the "RRULE:" prefix,
	// e.g. "FREQ=WEEKLY;COUNT=4".
	RRule string
}

// NewEvent validates ev and returns a normalized copy. Calling it again on
// its own result is a no-op.
func NewEvent(ev Event) (Event, error) {
	if !ev.End.After(ev.Start) {
		return Event{}, fmt.Errorf("%w: start %s, end %s", ErrInvalidInterval,
			ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339))
	}

	ev.RRule = strings.TrimPrefix(strings.TrimSpace(ev.RRule), "RRULE:")
	if ev.RRule != "" {
		if _, err := rrule.StrToROption(ev.RRule); err != nil {
			return Event{}, fmt.Errorf("%w %q: %v", ErrInvalidRRule, ev.RRule, err)
		}
	}

	ev.Attendees = normalizeAttendees(ev.Attendees)
	ev.OrganizerName = strings.TrimSpace(ev.OrganizerName)
	ev.OrganizerEmail = normalizeEmail(ev.OrganizerEmail)

	if strings.TrimSpace(ev.UID) == "" {
		ev.UID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Sequence < 0 {
		ev.Sequence = 0
	}
	return ev, nil
}

// Duration is the length of the event.
func (ev Event) Duration() time.Duration {
	return ev.End.Sub(ev.Start)
}

// Resend returns a copy with the sequence bumped, for re-sending an update
// of the same event (same UID) to attendees.
func (ev Event) Resend() Event {
	out := ev
	out.Attendees = append([]string(nil), ev.Attendees...)
	out.Sequence++
	return out
}

func normalizeAttendees(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if email := normalizeEmail(a); email != "" {
			out = append(out, email)
		}
	}
	return out
}

// normalizeEmail trims whitespace and unwraps "Name <addr>" forms. Case is
// preserved.
func normalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") || !strings.Contains(s, ">") {
		return s
	}
	open := strings.Index(s, "<")
	end := strings.Index(s, ">")
	if end <= open {
		return ""
	}
	return strings.TrimSpace(s[open+1 : end])
}
