package ics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"meetcal/internal/model"
)

func sampleRecord() model.MeetingRecord {
	due := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	return model.MeetingRecord{
		Title: "Q1 Planning",
		Date:  time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC),
		Attendees: []model.Attendee{
			{Name: "Alice", Email: "alice@example.com"},
			{Name: "Bob"},
		},
		DiscussionPoints: []string{"Bob will prepare documentation"},
		ActionItems: []model.ActionItem{
			{Description: "API integration", Assignee: "Bob", DueDate: &due, Priority: model.PriorityMedium},
			{Description: "Book room", Completed: true, Priority: model.PriorityMedium},
		},
		Decisions: []model.Decision{{Description: "Budget approved for cloud infrastructure"}},
	}
}

func TestFromMeetingDefaults(t *testing.T) {
	e := testEncoder()
	ev, err := e.FromMeeting(sampleRecord(), MeetingOptions{Location: "Room 4"})
	if err != nil {
		t.Fatalf("FromMeeting returned error: %v", err)
	}
	ist := DefaultZone.Location()
	wantStart := time.Date(2026, 2, 17, 9, 0, 0, 0, ist)
	if !ev.Start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", ev.Start, wantStart)
	}
	if ev.Duration() != DefaultDuration {
		t.Fatalf("duration = %v, want %v", ev.Duration(), DefaultDuration)
	}
	if len(ev.Attendees) != 1 || ev.Attendees[0] != "alice@example.com" {
		t.Fatalf("attendees = %v, want only addresses that are known", ev.Attendees)
	}
	if ev.Location != "Room 4" || ev.Title != "Q1 Planning" {
		t.Fatalf("event = %+v", ev)
	}
	for _, want := range []string{
		"Q1 Planning",
		"Discussion:\n- Bob will prepare documentation",
		"Decisions:\n- Budget approved for cloud infrastructure",
		"[ ] API integration (Bob) - Due Feb 20",
		"[x] Book room",
	} {
		if !strings.Contains(ev.Description, want) {
			t.Fatalf("description missing %q:\n%s", want, ev.Description)
		}
	}

	out, err := e.Encode(ev)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "DTSTART:20260217T033000Z\r\n") {
		t.Fatalf("meeting not anchored at 09:00 IST: %q", out)
	}
}

func TestFromMeetingKeepsExplicitTimeAndOptions(t *testing.T) {
	rec := sampleRecord()
	rec.Date = time.Date(2026, 2, 17, 14, 30, 0, 0, time.UTC)
	ev, err := testEncoder().FromMeeting(rec, MeetingOptions{
		Duration:  30 * time.Minute,
		StartHour: 11,
		Attendees: []string{"Carol <carol@example.com>"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Start.Hour() != 14 || ev.Start.Minute() != 30 {
		t.Fatalf("start = %v, want 14:30 wall clock", ev.Start)
	}
	if ev.Duration() != 30*time.Minute {
		t.Fatalf("duration = %v", ev.Duration())
	}
	if strings.Join(ev.Attendees, ",") != "alice@example.com,carol@example.com" {
		t.Fatalf("attendees = %v", ev.Attendees)
	}
}

func TestFromMeetingRequiresTitle(t *testing.T) {
	rec := sampleRecord()
	rec.Title = " "
	if _, err := testEncoder().FromMeeting(rec, MeetingOptions{}); err == nil {
		t.Fatalf("expected error for untitled record")
	}
}

func TestProposeSlots(t *testing.T) {
	e := testEncoder()
	slots := []Slot{
		{Start: march15At10, End: march15At11},
		{Start: march15At10.Add(4 * time.Hour), End: march15At11.Add(4 * time.Hour)},
	}
	events, err := e.ProposeSlots("Team Sync", slots, []string{"team@example.com"}, "Please choose one slot", "")
	if err != nil {
		t.Fatalf("ProposeSlots returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[1].Title != "Team Sync (Option 2)" {
		t.Fatalf("title = %q", events[1].Title)
	}
	if !strings.HasSuffix(events[0].Description, "\n\n(Option 1 of 2)") {
		t.Fatalf("description = %q", events[0].Description)
	}
	if events[0].UID == events[1].UID {
		t.Fatalf("options share a UID")
	}

	if _, err := e.ProposeSlots("x", nil, nil, "", ""); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
	_, err = e.ProposeSlots("x", []Slot{{Start: march15At11, End: march15At10}}, nil, "", "")
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}
