package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewAttendeeRejectsBlankName(t *testing.T) {
	_, err := NewAttendee("   ", "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("NewAttendee(blank) err = %v, want *ValidationError", err)
	}
	a, err := NewAttendee("  Alice ", " alice@example.com ")
	if err != nil {
		t.Fatalf("NewAttendee returned error: %v", err)
	}
	if a.Name != "Alice" || a.Email != "alice@example.com" {
		t.Fatalf("attendee = %+v, want trimmed name and email", a)
	}
}

func TestNewActionItemDefaults(t *testing.T) {
	item, err := NewActionItem(ActionItem{Description: " Ship it "})
	if err != nil {
		t.Fatalf("NewActionItem returned error: %v", err)
	}
	if item.Description != "Ship it" {
		t.Fatalf("description = %q, want %q", item.Description, "Ship it")
	}
	if item.Priority != PriorityMedium {
		t.Fatalf("priority = %s, want %s", item.Priority, PriorityMedium)
	}
	if item.Completed || item.DueDate != nil || item.Assignee != "" {
		t.Fatalf("unexpected non-default fields: %+v", item)
	}
}

func TestNewActionItemValidation(t *testing.T) {
	if _, err := NewActionItem(ActionItem{Description: "\t"}); err == nil {
		t.Fatalf("expected error for blank description")
	}
	if _, err := NewActionItem(ActionItem{Description: "x", Priority: "urgent"}); err == nil {
		t.Fatalf("expected error for unknown priority")
	}
	item, err := NewActionItem(ActionItem{Description: "x", Priority: "HIGH"})
	if err != nil {
		t.Fatalf("NewActionItem returned error: %v", err)
	}
	if item.Priority != PriorityHigh {
		t.Fatalf("priority = %s, want %s", item.Priority, PriorityHigh)
	}
}

func TestNewActionItemCopiesDueDate(t *testing.T) {
	due := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	item, err := NewActionItem(ActionItem{Description: "x", DueDate: &due})
	if err != nil {
		t.Fatal(err)
	}
	due = due.AddDate(0, 0, 1)
	if item.DueDate.Day() != 20 {
		t.Fatalf("due date changed through caller pointer: %v", item.DueDate)
	}
}

func TestNewDecisionAndRecord(t *testing.T) {
	if _, err := NewDecision("", "From discussion"); err == nil {
		t.Fatalf("expected error for blank decision")
	}
	if _, err := NewMeetingRecord(MeetingRecord{Title: "  "}); err == nil {
		t.Fatalf("expected error for blank title")
	}
	r, err := NewMeetingRecord(MeetingRecord{Title: "Sync"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Attendees == nil || r.ActionItems == nil || r.Decisions == nil || r.DiscussionPoints == nil {
		t.Fatalf("expected empty, non-nil collections: %+v", r)
	}
}

func TestActionItemsByAssignee(t *testing.T) {
	r := MeetingRecord{
		Title: "Sync",
		ActionItems: []ActionItem{
			{Description: "a", Assignee: "Charlie"},
			{Description: "b"},
			{Description: "c", Assignee: "Bob", Completed: true},
			{Description: "d", Assignee: "Charlie"},
		},
	}
	assignees, by, unassigned := r.ActionItemsByAssignee()
	if len(assignees) != 2 || assignees[0] != "Bob" || assignees[1] != "Charlie" {
		t.Fatalf("assignees = %v, want [Bob Charlie]", assignees)
	}
	if len(by["Charlie"]) != 2 {
		t.Fatalf("Charlie items = %d, want 2", len(by["Charlie"]))
	}
	if len(unassigned) != 1 || unassigned[0].Description != "b" {
		t.Fatalf("unassigned = %+v", unassigned)
	}
	if r.CompletedCount() != 1 || r.PendingCount() != 3 {
		t.Fatalf("completed/pending = %d/%d, want 1/3", r.CompletedCount(), r.PendingCount())
	}
}
