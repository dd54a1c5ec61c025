package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultProductID is the PRODID written when Config leaves it empty.
	DefaultProductID      = "-//MeetingPipeline//Meeting to Project Pipeline//EN"
	DefaultOrganizerName  = "Meeting Pipeline"
	DefaultOrganizerEmail = "meetings@company.com"

	lineLimit = 75
	crlf      = "\r\n"

	utcLayout = "20060102T150405Z"

	methodRequest = "REQUEST"
	methodPublish = "PUBLISH"

	// Apple Calendar marker, only written for single invitations.
	compatibilityLine = "X-APPLE-TRAVEL-ADVISORY-BEWARE;ACKNOWLEDGED=0:"
)

// ErrEmptyBatch is returned by EncodeBatch when there is nothing to encode.
var ErrEmptyBatch = errors.New("at least one event is required")

// Zone is the fixed organizational timezone written as the calendar's
// VTIMEZONE. It has no DST transitions.
type Zone struct {
	// ID is the TZID, e.g. "Asia/Kolkata".
	ID string
	// Name is the TZNAME abbreviation, e.g. "IST".
	Name string
	// Offset from UTC, e.g. 5h30m.
	Offset time.Duration
}

// DefaultZone is Indian Standard Time, GMT+5:30 all year.
var DefaultZone = Zone{ID: "Asia/Kolkata", Name: "IST", Offset: 5*time.Hour + 30*time.Minute}

// Location returns a fixed-offset location for z.
func (z Zone) Location() *time.Location {
	return time.FixedZone(z.Name, int(z.Offset/time.Second))
}

// offsetString formats the offset as +hhmm / -hhmm.
func (z Zone) offsetString() string {
	sign := "+"
	off := z.Offset
	if off < 0 {
		sign = "-"
		off = -off
	}
	minutes := int(off / time.Minute)
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}

// Config is the immutable configuration of an Encoder.
type Config struct {
	ProductID      string
	Zone           Zone
	OrganizerName  string
	OrganizerEmail string

	// Now stamps LAST-MODIFIED. Nil means time.Now.
	Now func() time.Time
}

// Encoder renders events as RFC 5545 text. It holds no mutable state and
// can be shared between goroutines.
type Encoder struct {
	cfg Config
	loc *time.Location
}

func NewEncoder(cfg Config) *Encoder {
	if cfg.ProductID == "" {
		cfg.ProductID = DefaultProductID
	}
	if cfg.Zone.ID == "" {
		cfg.Zone = DefaultZone
	}
	if cfg.Zone.Name == "" {
		cfg.Zone.Name = cfg.Zone.ID
	}
	if cfg.OrganizerName == "" {
		cfg.OrganizerName = DefaultOrganizerName
	}
	if cfg.OrganizerEmail == "" {
		cfg.OrganizerEmail = DefaultOrganizerEmail
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Encoder{cfg: cfg, loc: cfg.Zone.Location()}
}

// Zone returns the organizational zone the encoder writes.
func (e *Encoder) Zone() Zone { return e.cfg.Zone }

// Encode renders a single event as an invitation (METHOD:REQUEST).
func (e *Encoder) Encode(ev Event) (string, error) {
	ev, err := NewEvent(ev)
	if err != nil {
		return "", err
	}
	lines := e.header(methodRequest)
	lines = append(lines, e.eventLines(ev, true)...)
	lines = append(lines, "END:VCALENDAR")
	return render(lines), nil
}

// EncodeBatch renders several events into one published calendar
// (METHOD:PUBLISH) with a single header and VTIMEZONE.
func (e *Encoder) EncodeBatch(events []Event) (string, error) {
	if len(events) == 0 {
		return "", ErrEmptyBatch
	}
	lines := e.header(methodPublish)
	for i, ev := range events {
		ev, err := NewEvent(ev)
		if err != nil {
			return "", fmt.Errorf("event %d: %w", i, err)
		}
		lines = append(lines, e.eventLines(ev, false)...)
	}
	lines = append(lines, "END:VCALENDAR")
	return render(lines), nil
}

func (e *Encoder) header(method string) []string {
	return []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + e.cfg.ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:" + method,
		"BEGIN:VTIMEZONE",
		"TZID:" + e.cfg.Zone.ID,
		"X-LIC-LOCATION:" + e.cfg.Zone.ID,
		"BEGIN:STANDARD",
		"DTSTART:19700101T000000",
		"TZOFFSETFROM:" + e.cfg.Zone.offsetString(),
		"TZOFFSETTO:" + e.cfg.Zone.offsetString(),
		"TZNAME:" + e.cfg.Zone.Name,
		"END:STANDARD",
		"END:VTIMEZONE",
	}
}

// eventLines builds one VEVENT. invite selects the REQUEST flavour: RSVP on
// attendees and the compatibility marker.
func (e *Encoder) eventLines(ev Event, invite bool) []string {
	created := formatUTC(ev.CreatedAt)
	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + ev.UID,
		"DTSTAMP:" + created,
		"CREATED:" + created,
		"LAST-MODIFIED:" + formatUTC(e.cfg.Now()),
		"DTSTART:" + formatUTC(ev.Start),
		"DTEND:" + formatUTC(ev.End),
	}
	if ev.RRule != "" {
		lines = append(lines, "RRULE:"+ev.RRule)
	}
	lines = append(lines,
		"SEQUENCE:"+strconv.Itoa(ev.Sequence),
		"SUMMARY:"+escapeText(ev.Title),
	)
	if ev.Description != "" {
		lines = append(lines, "DESCRIPTION:"+escapeText(ev.Description))
	}
	if ev.Location != "" {
		lines = append(lines, "LOCATION:"+escapeText(ev.Location))
	}
	lines = append(lines, "STATUS:CONFIRMED", "TRANSP:OPAQUE")

	name, email := ev.OrganizerName, ev.OrganizerEmail
	if name == "" {
		name = e.cfg.OrganizerName
	}
	if email == "" {
		email = e.cfg.OrganizerEmail
	}
	lines = append(lines, fmt.Sprintf(`ORGANIZER;CN="%s":mailto:%s`, quoteParam(name), email))

	attendeeParams := "ROLE=REQ-PARTICIPANT"
	if invite {
		attendeeParams += ";RSVP=TRUE"
	}
	for _, a := range ev.Attendees {
		lines = append(lines, "ATTENDEE;"+attendeeParams+":mailto:"+a)
	}

	lines = append(lines, "CLASS:PUBLIC")
	if invite {
		lines = append(lines, compatibilityLine)
	}
	return append(lines, "END:VEVENT")
}

func formatUTC(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// textEscaper works in a single pass, so a backslash produced by one rule is
// never escaped again by another.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\n", `\n`,
	"\r", "",
)

// escapeText escapes a TEXT property value.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// quoteParam drops characters a quoted parameter value cannot carry.
func quoteParam(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// fold breaks a content line into chunks of at most 75 octets, each
// continuation starting with a single space. Multi-byte characters are never
// split.
func fold(line string) string {
	if len(line) <= lineLimit {
		return line
	}
	var b strings.Builder
	for len(line) > lineLimit {
		cut := lineLimit
		for cut > 1 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString(crlf)
		line = " " + line[cut:]
	}
	b.WriteString(line)
	return b.String()
}

// render folds every assembled line and terminates each with CRLF.
func render(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(fold(l))
		b.WriteString(crlf)
	}
	return b.String()
}
