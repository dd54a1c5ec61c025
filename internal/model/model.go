package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError reports a structured field that violates its invariant.
// It is raised when constructing a single entity; the notes parser catches
// it per entry and drops the offending item.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func blank(field string) error {
	return &ValidationError{Field: field, Reason: "cannot be empty"}
}

// Priority is the urgency of an action item.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority accepts any casing of the four levels. Unknown input yields
// PriorityMedium and false.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, true
	default:
		return PriorityMedium, false
	}
}

// Attendee is a meeting participant. Email is optional.
type Attendee struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

func NewAttendee(name, email string) (Attendee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Attendee{}, blank("attendee name")
	}
	return Attendee{Name: name, Email: strings.TrimSpace(email)}, nil
}

// ActionItem is a task extracted from meeting notes.
type ActionItem struct {
	Description string     `json:"description" yaml:"description"`
	Assignee    string     `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Completed   bool       `json:"completed" yaml:"completed"`
}

// NewActionItem validates item and fills defaults (medium priority).
func NewActionItem(item ActionItem) (ActionItem, error) {
	item.Description = strings.TrimSpace(item.Description)
	if item.Description == "" {
		return ActionItem{}, blank("action item description")
	}
	item.Assignee = strings.TrimSpace(item.Assignee)
	if item.Priority == "" {
		item.Priority = PriorityMedium
	} else if p, ok := ParsePriority(string(item.Priority)); ok {
		item.Priority = p
	} else {
		return ActionItem{}, &ValidationError{Field: "action item priority", Reason: fmt.Sprintf("unknown level %q", item.Priority)}
	}
	if item.DueDate != nil {
		d := *item.DueDate
		item.DueDate = &d
	}
	return item, nil
}

// Decision is a resolution recorded during the meeting. Context says where it
// came from, e.g. "From discussion".
type Decision struct {
	Description string `json:"description" yaml:"description"`
	Context     string `json:"context,omitempty" yaml:"context,omitempty"`
}

func NewDecision(description, context string) (Decision, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Decision{}, blank("decision description")
	}
	return Decision{Description: description, Context: context}, nil
}

// MeetingRecord is the structured result of parsing one set of notes. It is
// handed by value to every downstream generator.
type MeetingRecord struct {
	Title            string       `json:"title" yaml:"title"`
	Date             time.Time    `json:"date" yaml:"date"`
	Attendees        []Attendee   `json:"attendees" yaml:"attendees"`
	DiscussionPoints []string     `json:"discussion_points" yaml:"discussion_points"`
	ActionItems      []ActionItem `json:"action_items" yaml:"action_items"`
	Decisions        []Decision   `json:"decisions" yaml:"decisions"`
	RawNotes         string       `json:"raw_notes" yaml:"raw_notes"`
}

// NewMeetingRecord validates the title and replaces nil slices with empty ones.
func NewMeetingRecord(r MeetingRecord) (MeetingRecord, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return MeetingRecord{}, blank("meeting title")
	}
	if r.Attendees == nil {
		r.Attendees = []Attendee{}
	}
	if r.DiscussionPoints == nil {
		r.DiscussionPoints = []string{}
	}
	if r.ActionItems == nil {
		r.ActionItems = []ActionItem{}
	}
	if r.Decisions == nil {
		r.Decisions = []Decision{}
	}
	return r, nil
}

// AttendeeNames returns attendee names in their original order.
func (r MeetingRecord) AttendeeNames() []string {
	names := make([]string, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		names = append(names, a.Name)
	}
	return names
}

// AttendeeEmails returns the addresses of attendees that have one.
func (r MeetingRecord) AttendeeEmails() []string {
	emails := make([]string, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		if a.Email != "" {
			emails = append(emails, a.Email)
		}
	}
	return emails
}

// ActionItemsByAssignee groups assigned items by assignee. Unassigned items
// are returned separately. Assignees are listed in sorted order.
func (r MeetingRecord) ActionItemsByAssignee() (assignees []string, byAssignee map[string][]ActionItem, unassigned []ActionItem) {
	byAssignee = make(map[string][]ActionItem)
	for _, item := range r.ActionItems {
		if item.Assignee == "" {
			unassigned = append(unassigned, item)
			continue
		}
		if _, seen := byAssignee[item.Assignee]; !seen {
			assignees = append(assignees, item.Assignee)
		}
		byAssignee[item.Assignee] = append(byAssignee[item.Assignee], item)
	}
	sort.Strings(assignees)
	return assignees, byAssignee, unassigned
}

func (r MeetingRecord) CompletedCount() int {
	n := 0
	for _, item := range r.ActionItems {
		if item.Completed {
			n++
		}
	}
	return n
}

func (r MeetingRecord) PendingCount() int {
	return len(r.ActionItems) - r.CompletedCount()
}
