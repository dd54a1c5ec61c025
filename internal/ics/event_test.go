package ics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	march15At10 = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	march15At11 = time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)
)

func TestNewEventFillsUIDAndCreatedAt(t *testing.T) {
	ev, err := NewEvent(Event{
		Title:     "Test Meeting",
		Start:     march15At10,
		End:       march15At11,
		Attendees: []string{"alice@example.com", "bob@example.com"},
	})
	if err != nil {
		t.Fatalf("NewEvent returned error: %v", err)
	}
	if _, err := uuid.Parse(ev.UID); err != nil {
		t.Fatalf("UID %q is not a UUID: %v", ev.UID, err)
	}
	if ev.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set")
	}
	if ev.Duration() != time.Hour {
		t.Fatalf("Duration = %v, want 1h", ev.Duration())
	}

	again, err := NewEvent(ev)
	if err != nil {
		t.Fatal(err)
	}
	if again.UID != ev.UID || !again.CreatedAt.Equal(ev.CreatedAt) {
		t.Fatalf("NewEvent is not idempotent: %+v vs %+v", again, ev)
	}
}

func TestNewEventUIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ev, err := NewEvent(Event{Start: march15At10, End: march15At11})
		if err != nil {
			t.Fatal(err)
		}
		if seen[ev.UID] {
			t.Fatalf("duplicate UID %s", ev.UID)
		}
		seen[ev.UID] = true
	}
}

func TestNewEventRejectsInvalidInterval(t *testing.T) {
	for _, tc := range []struct{ start, end time.Time }{
		{march15At11, march15At10},
		{march15At10, march15At10},
	} {
		_, err := NewEvent(Event{Title: "Invalid", Start: tc.start, End: tc.end})
		if !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("NewEvent(%v..%v) err = %v, want ErrInvalidInterval", tc.start, tc.end, err)
		}
	}
}

func TestNewEventNormalizesAttendees(t *testing.T) {
	ev, err := NewEvent(Event{
		Start: march15At10,
		End:   march15At11,
		Attendees: []string{
			"Alice Smith <alice@example.com>",
			"",
			"bob@example.com",
			"  BOB@EXAMPLE.COM  ",
			"   ",
			"broken > order <x",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alice@example.com", "bob@example.com", "BOB@EXAMPLE.COM"}
	if strings.Join(ev.Attendees, ",") != strings.Join(want, ",") {
		t.Fatalf("attendees = %q, want %q", ev.Attendees, want)
	}
}

func TestNewEventValidatesRRule(t *testing.T) {
	ev, err := NewEvent(Event{Start: march15At10, End: march15At11, RRule: "RRULE:FREQ=WEEKLY;COUNT=3"})
	if err != nil {
		t.Fatalf("NewEvent returned error: %v", err)
	}
	if ev.RRule != "FREQ=WEEKLY;COUNT=3" {
		t.Fatalf("RRule = %q", ev.RRule)
	}
	_, err = NewEvent(Event{Start: march15At10, End: march15At11, RRule: "FREQ=SOMETIMES"})
	if !errors.Is(err, ErrInvalidRRule) {
		t.Fatalf("err = %v, want ErrInvalidRRule", err)
	}
}

func TestResendBumpsSequenceOnCopy(t *testing.T) {
	ev, err := NewEvent(Event{Start: march15At10, End: march15At11, Attendees: []string{"a@example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	next := ev.Resend()
	if next.Sequence != 1 || ev.Sequence != 0 {
		t.Fatalf("sequence = %d (original %d), want 1 (original 0)", next.Sequence, ev.Sequence)
	}
	if next.UID != ev.UID {
		t.Fatalf("Resend changed UID")
	}
	next.Attendees[0] = "changed@example.com"
	if ev.Attendees[0] != "a@example.com" {
		t.Fatalf("Resend shares attendee storage with the original")
	}
}
