// Package notes extracts a structured meeting record from free-text notes.
//
// Each field is pulled out by its own rule; a missing or malformed field
// degrades to a default or an empty collection instead of failing the parse.
// Only blank input is rejected.
package notes

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"meetcal/internal/dates"
	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// ErrEmptyInput is returned by Parse for empty or whitespace-only notes.
var ErrEmptyInput = errors.New("meeting notes cannot be empty")

const (
	maxFallbackTitle = 50
	decisionContext  = "From discussion"
	untitledMeeting  = "Untitled Meeting"
)

var (
	titleLine     = regexp.MustCompile(`(?im)^meeting:\s*(.+)$`)
	dateLine      = regexp.MustCompile(`(?im)^date:\s*(.+)$`)
	attendeesLine = regexp.MustCompile(`(?im)^attendees?:\s*(.+)$`)
	attendeeSep   = regexp.MustCompile(`(?i),\s*|\s+and\s+`)

	// Section headers must start a line. Bullet sections run until the
	// first line that is not a bullet.
	discussionSection = regexp.MustCompile(`(?im)^[ \t]*discussion:?\s*\n((?:[ \t]*[-*].*\n?)+)`)
	decisionsSection  = regexp.MustCompile(`(?im)^[ \t]*decisions?:?\s*\n((?:[ \t]*[-*].*\n?)+)`)
	// The action section ends at the next line starting with an uppercase
	// letter, so only the header itself is case-insensitive.
	actionSection = regexp.MustCompile(`(?ms)^[ \t]*(?i:action\s*items?):?\s*\n(.*?)(?:\n[A-Z]|\z)`)

	// prefix (numbered / bulleted, optional checkbox), description,
	// optional " - assignee", optional " - Due <date>". Names may use any
	// script, so word characters are spelled as Unicode classes.
	actionLine = regexp.MustCompile(
		`^\s*(?:\d+\.\s*\[([ xX✓])\]\s*|[-*]\s*\[([ xX✓])\]\s*|\d+\.\s*|[-*]\s*)?` +
			`(.+?)(?:\s*[-–]\s*([\p{L}\p{N}_]+))?(?:\s*[-–]\s*(?i:due)\s*(.+?))?$`)

	implicitAction = regexp.MustCompile(`(?i)([\p{L}\p{N}_]+)\s+(?:will|to)\s+(.+)`)
	implicitDue    = regexp.MustCompile(`(?i)\bby\s+(.+?)(?:$|\.|,)`)

	decisionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)approved\s+for\s+(.+)`),
		regexp.MustCompile(`(?i)budget\s+approved`),
		regexp.MustCompile(`(?i)decided\s+(?:to|on)\s+(.+)`),
		regexp.MustCompile(`(?i)agreed\s+(?:to|on)\s+(.+)`),
	}
)

// Options configure a Parser.
type Options struct {
	// Resolver parses the meeting date and due dates. Nil means a resolver
	// for the current year in time.Local.
	Resolver *dates.Resolver
	// Now supplies "today" for notes without a usable date. Nil means time.Now.
	Now func() time.Time
}

// Parser holds only immutable configuration and is safe for concurrent use.
type Parser struct {
	resolver *dates.Resolver
	now      func() time.Time
}

func New(opts Options) *Parser {
	p := &Parser{resolver: opts.Resolver, now: opts.Now}
	if p.resolver == nil {
		p.resolver = dates.New(dates.Options{})
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Parse turns raw notes into a MeetingRecord.
func (p *Parser) Parse(raw string) (model.MeetingRecord, error) {
	if strings.TrimSpace(raw) == "" {
		return model.MeetingRecord{}, ErrEmptyInput
	}
	text := strings.ReplaceAll(raw, "\r\n", "\n")

	discussion := extractDiscussion(text)
	record := model.MeetingRecord{
		Title:            extractTitle(text),
		Date:             p.extractDate(text),
		Attendees:        extractAttendees(text),
		DiscussionPoints: discussion,
		ActionItems:      append(p.explicitActionItems(text), p.implicitActionItems(discussion)...),
		Decisions:        append(explicitDecisions(text), implicitDecisions(discussion)...),
		RawNotes:         raw,
	}

	record, err := model.NewMeetingRecord(record)
	if err != nil {
		return model.MeetingRecord{}, err
	}

	appLog.Debug("notes parsed",
		"title", record.Title,
		"date", record.Date.Format("2006-01-02"),
		"attendees", len(record.Attendees),
		"discussion_points", len(record.DiscussionPoints),
		"action_items", len(record.ActionItems),
		"decisions", len(record.Decisions),
	)
	return record, nil
}

func firstCapture(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

func extractTitle(text string) string {
	if title, ok := firstCapture(titleLine, text); ok {
		return title
	}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return truncateRunes(line, maxFallbackTitle)
	}
	return untitledMeeting
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

func (p *Parser) today() time.Time {
	now := p.now().In(p.resolver.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (p *Parser) extractDate(text string) time.Time {
	raw, ok := firstCapture(dateLine, text)
	if !ok {
		return p.today()
	}
	d, err := p.resolver.Resolve(raw)
	if err != nil {
		appLog.Debug("meeting date not understood, using today", "date", raw)
		return p.today()
	}
	return d
}

func extractAttendees(text string) []model.Attendee {
	raw, ok := firstCapture(attendeesLine, text)
	if !ok {
		return nil
	}
	var out []model.Attendee
	for _, name := range attendeeSep.Split(raw, -1) {
		a, err := model.NewAttendee(name, "")
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// bullets returns the trimmed text of every "-" or "*" line in section.
func bullets(section string) []string {
	var out []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		if point := strings.TrimSpace(line[1:]); point != "" {
			out = append(out, point)
		}
	}
	return out
}

func extractDiscussion(text string) []string {
	m := discussionSection.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return bullets(m[1])
}

func (p *Parser) dueDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := p.resolver.Resolve(raw)
	if err != nil {
		appLog.Debug("due date not understood, leaving unset", "due", raw)
		return nil
	}
	return &d
}

func (p *Parser) explicitActionItems(text string) []model.ActionItem {
	m := actionSection.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var out []model.ActionItem
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		g := actionLine.FindStringSubmatch(line)
		if g == nil {
			continue
		}
		mark := g[1] + g[2]
		item, err := model.NewActionItem(model.ActionItem{
			Description: g[3],
			Assignee:    g[4],
			DueDate:     p.dueDate(g[5]),
			Completed:   mark == "x" || mark == "X" || mark == "✓",
		})
		if err != nil {
			appLog.Debug("action item dropped", "line", line, "reason", err)
			continue
		}
		out = append(out, item)
	}
	return out
}

// implicitActionItems treats "<who> will|to <what>" sentences in the
// discussion as tasks, with an optional "by <date>".
func (p *Parser) implicitActionItems(points []string) []model.ActionItem {
	var out []model.ActionItem
	for _, point := range points {
		m := implicitAction.FindStringSubmatch(point)
		if m == nil {
			continue
		}
		var due *time.Time
		if dm := implicitDue.FindStringSubmatch(point); dm != nil {
			due = p.dueDate(dm[1])
		}
		item, err := model.NewActionItem(model.ActionItem{
			Description: m[2],
			Assignee:    m[1],
			DueDate:     due,
		})
		if err != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

func explicitDecisions(text string) []model.Decision {
	m := decisionsSection.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []model.Decision
	for _, desc := range bullets(m[1]) {
		d, err := model.NewDecision(desc, "")
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

func implicitDecisions(points []string) []model.Decision {
	var out []model.Decision
	for _, point := range points {
		for _, re := range decisionPatterns {
			if !re.MatchString(point) {
				continue
			}
			if d, err := model.NewDecision(point, decisionContext); err == nil {
				out = append(out, d)
			}
			break
		}
	}
	return out
}
