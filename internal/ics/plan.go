package ics

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meetcal/internal/dates"
)

const untitledEvent = "Untitled Event"

// ErrEmptyPlan is returned when a plan lists no events.
var ErrEmptyPlan = errors.New("plan must contain at least one event")

// Plan describes follow-up events extracted from one meeting, usually
// written by hand or by another tool as YAML (or JSON).
type Plan struct {
	MeetingTitle    string        `yaml:"meeting_title" json:"meeting_title"`
	Participants    []string      `yaml:"participants" json:"participants"`
	DefaultLocation string        `yaml:"default_location" json:"default_location"`
	Events          []PlannedItem `yaml:"events" json:"events"`
}

// PlannedItem is one event inside a Plan. Either EndTime or DurationMinutes
// may be given; without both the event lasts one hour.
type PlannedItem struct {
	Title           string   `yaml:"title" json:"title"`
	StartTime       string   `yaml:"start_time" json:"start_time"`
	EndTime         string   `yaml:"end_time,omitempty" json:"end_time,omitempty"`
	DurationMinutes int      `yaml:"duration_minutes,omitempty" json:"duration_minutes,omitempty"`
	Attendees       []string `yaml:"attendees,omitempty" json:"attendees,omitempty"`
	Description     string   `yaml:"description,omitempty" json:"description,omitempty"`
	Location        string   `yaml:"location,omitempty" json:"location,omitempty"`
}

// DecodePlan reads a YAML (or JSON) plan document.
func DecodePlan(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	return p, nil
}

// LoadPlan reads a plan file from disk.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, err
	}
	return DecodePlan(data)
}

// FromPlan turns every planned item into an Event. Times without an offset
// are UTC; text that is not an ISO timestamp is handed to resolver as a date
// and starts at midnight UTC. A nil resolver gets one for the current year.
func (e *Encoder) FromPlan(plan Plan, resolver *dates.Resolver) ([]Event, error) {
	if len(plan.Events) == 0 {
		return nil, ErrEmptyPlan
	}
	if resolver == nil {
		resolver = dates.New(dates.Options{Location: time.UTC})
	}

	out := make([]Event, 0, len(plan.Events))
	for i, item := range plan.Events {
		ev, err := e.plannedEvent(plan, item, resolver)
		if err != nil {
			return nil, fmt.Errorf("plan event %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (e *Encoder) plannedEvent(plan Plan, item PlannedItem, resolver *dates.Resolver) (Event, error) {
	if strings.TrimSpace(item.StartTime) == "" {
		return Event{}, errors.New("start_time is required")
	}
	start, err := e.parseDateTime(item.StartTime, resolver)
	if err != nil {
		return Event{}, err
	}

	var end time.Time
	switch {
	case strings.TrimSpace(item.EndTime) != "":
		if end, err = e.parseDateTime(item.EndTime, resolver); err != nil {
			return Event{}, err
		}
	case item.DurationMinutes > 0:
		end = start.Add(time.Duration(item.DurationMinutes) * time.Minute)
	default:
		end = start.Add(time.Hour)
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitledEvent
	}
	location := item.Location
	if location == "" {
		location = plan.DefaultLocation
	}
	description := item.Description
	if plan.MeetingTitle != "" {
		description = "From: " + plan.MeetingTitle + "\n\n" + description
	}

	return NewEvent(Event{
		Title:          title,
		Start:          start,
		End:            end,
		Attendees:      mergeAddresses(item.Attendees, plan.Participants),
		Description:    description,
		Location:       location,
		OrganizerName:  e.cfg.OrganizerName,
		OrganizerEmail: e.cfg.OrganizerEmail,
	})
}

var (
	offsetLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04:05-0700",
		"2006-01-02 15:04:05-0700",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

func (e *Encoder) parseDateTime(s string, resolver *dates.Resolver) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range offsetLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	// Times without an offset are UTC.
	for _, l := range naiveLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	d, err := resolver.Resolve(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse datetime %q: %w", s, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}

// mergeAddresses concatenates lists, dropping repeats after normalization.
func mergeAddresses(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, a := range list {
			email := normalizeEmail(a)
			if email == "" || seen[strings.ToLower(email)] {
				continue
			}
			seen[strings.ToLower(email)] = true
			out = append(out, email)
		}
	}
	return out
}
