package ics

import (
	"strings"
	"testing"
	"time"

	eical "github.com/emersion/go-ical"
)

var roundTripStart = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func roundTripBatch(t *testing.T) string {
	t.Helper()
	out, err := testEncoder().EncodeBatch([]Event{
		{
			UID:       "weekly-uid",
			Title:     "Weekly Standup",
			Start:     roundTripStart,
			End:       roundTripStart.Add(30 * time.Minute),
			Attendees: []string{"alice@example.com", "bob@example.com"},
			Location:  "Room 4",
			RRule:     "FREQ=WEEKLY;COUNT=3",
			Sequence:  2,
		},
		{
			UID:   "review-uid",
			Title: "Design Review",
			Start: roundTripStart.Add(48 * time.Hour),
			End:   roundTripStart.Add(49 * time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("EncodeBatch returned error: %v", err)
	}
	return out
}

func TestParseReadsEncodedBatch(t *testing.T) {
	events, err := Parse([]byte(roundTripBatch(t)))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	weekly := events[0]
	if weekly.UID != "weekly-uid" || weekly.Summary != "Weekly Standup" || weekly.Location != "Room 4" {
		t.Fatalf("weekly = %+v", weekly)
	}
	if weekly.Sequence != 2 {
		t.Fatalf("sequence = %d, want 2", weekly.Sequence)
	}
	if weekly.Organizer != DefaultOrganizerEmail {
		t.Fatalf("organizer = %q", weekly.Organizer)
	}
	if strings.Join(weekly.Attendees, ",") != "alice@example.com,bob@example.com" {
		t.Fatalf("attendees = %v", weekly.Attendees)
	}
	if !weekly.Start.Equal(roundTripStart) || !weekly.End.Equal(roundTripStart.Add(30*time.Minute)) {
		t.Fatalf("times = %v..%v", weekly.Start, weekly.End)
	}
	if weekly.AllDay {
		t.Fatalf("timed event reported as all-day")
	}
	if weekly.RawRRule != "FREQ=WEEKLY;COUNT=3" {
		t.Fatalf("rrule = %q", weekly.RawRRule)
	}
	if events[1].RawRRule != "" {
		t.Fatalf("second event has rrule %q", events[1].RawRRule)
	}
}

func TestEncodedBatchDecodesWithSecondReader(t *testing.T) {
	cal, err := eical.NewDecoder(strings.NewReader(roundTripBatch(t))).Decode()
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	summary, err := events[1].Props.Text(eical.PropSummary)
	if err != nil {
		t.Fatal(err)
	}
	if summary != "Design Review" {
		t.Fatalf("summary = %q", summary)
	}
	start, err := events[1].DateTimeStart(time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(roundTripStart.Add(48 * time.Hour)) {
		t.Fatalf("start = %v", start)
	}
}

func TestParseRejectsEmptyBody(t *testing.T) {
	if _, err := Parse([]byte("  \r\n")); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestExpandRecurringAndSingle(t *testing.T) {
	events, err := Parse([]byte(roundTripBatch(t)))
	if err != nil {
		t.Fatal(err)
	}
	res, err := Expand(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	var got []string
	for _, o := range res.Occurrences {
		got = append(got, o.UID+"@"+o.Start.Format("01-02T15:04"))
	}
	want := "weekly-uid@03-15T10:00,review-uid@03-17T10:00,weekly-uid@03-22T10:00,weekly-uid@03-29T10:00"
	if strings.Join(got, ",") != want {
		t.Fatalf("occurrences = %v, want %s", got, want)
	}
	if res.Occurrences[0].End.Sub(res.Occurrences[0].Start) != 30*time.Minute {
		t.Fatalf("occurrence duration not preserved")
	}
	if len(res.Truncated) != 0 {
		t.Fatalf("truncated = %v", res.Truncated)
	}
}

func TestExpandCapsOccurrences(t *testing.T) {
	ev := ParsedEvent{
		UID:      "daily",
		Start:    roundTripStart,
		End:      roundTripStart.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
		ExDates:  []time.Time{roundTripStart.Add(24 * time.Hour)},
	}
	res, err := Expand([]ParsedEvent{ev}, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      roundTripStart,
		RangeEnd:        roundTripStart.AddDate(0, 1, 0),
		MaxOccurrences:  5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 5 || len(res.Truncated) != 1 || res.Truncated[0] != "daily" {
		t.Fatalf("result = %d occurrences, truncated %v", len(res.Occurrences), res.Truncated)
	}
	if res.Occurrences[1].Start.Day() != 17 {
		t.Fatalf("EXDATE not applied: second occurrence %v", res.Occurrences[1].Start)
	}

	if _, err := Expand(nil, ExpandConfig{RangeStart: roundTripStart, RangeEnd: roundTripStart.Add(-time.Hour)}); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}
