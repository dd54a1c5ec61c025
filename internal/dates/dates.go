// Package dates turns free-form date text from meeting notes into calendar
// dates. Exact layouts are tried first, most specific first; a fuzzy
// month/day/year scan is the last resort.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError is returned when no strategy produced a valid date.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse date: %q", e.Text)
}

// Kind tags how a Match was obtained.
type Kind int

const (
	Failed Kind = iota
	ExactMatch
	FuzzyMatch
)

func (k Kind) String() string {
	switch k {
	case ExactMatch:
		return "exact"
	case FuzzyMatch:
		return "fuzzy"
	default:
		return "failed"
	}
}

// Match is the outcome of resolving one piece of text.
type Match struct {
	Kind Kind
	Date time.Time
	// Layout is the Go layout that matched; empty for fuzzy and failed results.
	Layout string
}

type layout struct {
	value   string
	hasYear bool
}

// layouts mirrors "Mon D, YYYY", "Month D, YYYY", "YYYY-MM-DD", "D Mon YYYY",
// "D Month YYYY", "MM/DD/YYYY", "DD/MM/YYYY", then the year-less forms.
var layouts = []layout{
	{"Jan 2, 2006", true},
	{"January 2, 2006", true},
	{"2006-1-2", true},
	{"2 Jan 2006", true},
	{"2 January 2006", true},
	{"1/2/2006", true},
	{"2/1/2006", true},
	{"Jan 2", false},
	{"January 2", false},
	{"2 Jan", false},
}

type monthName struct {
	name  string
	month time.Month
}

// Scanned in order; the first name contained in the text wins.
var monthNames = []monthName{
	{"jan", time.January}, {"feb", time.February}, {"mar", time.March},
	{"apr", time.April}, {"may", time.May}, {"jun", time.June},
	{"jul", time.July}, {"aug", time.August}, {"sep", time.September},
	{"sept", time.September}, {"oct", time.October}, {"nov", time.November},
	{"dec", time.December},
	{"january", time.January}, {"february", time.February}, {"march", time.March},
	{"april", time.April}, {"june", time.June}, {"july", time.July},
	{"august", time.August}, {"september", time.September}, {"october", time.October},
	{"november", time.November}, {"december", time.December},
}

var (
	dayToken  = regexp.MustCompile(`\b(\d{1,2})\b`)
	yearToken = regexp.MustCompile(`\b(20\d{2})\b`)
)

// Options configure a Resolver.
type Options struct {
	// DefaultYear fills in year-less dates. Zero means the current year.
	DefaultYear int
	// Location of the returned midnight. Nil means time.Local.
	Location *time.Location
}

// Resolver is immutable after New and safe for concurrent use.
type Resolver struct {
	defaultYear int
	loc         *time.Location
}

func New(opts Options) *Resolver {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	year := opts.DefaultYear
	if year <= 0 {
		year = time.Now().In(loc).Year()
	}
	return &Resolver{defaultYear: year, loc: loc}
}

func (r *Resolver) DefaultYear() int { return r.defaultYear }

func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns midnight of the date described by text.
func (r *Resolver) Resolve(text string) (time.Time, error) {
	return r.ResolveWithYear(text, r.defaultYear)
}

// ResolveWithYear is Resolve with an explicit year for year-less input.
func (r *Resolver) ResolveWithYear(text string, defaultYear int) (time.Time, error) {
	m := r.match(text, defaultYear)
	if m.Kind == Failed {
		return time.Time{}, &ParseError{Text: text}
	}
	return m.Date, nil
}

// Match reports which strategy resolved text, using the default year.
func (r *Resolver) Match(text string) Match {
	return r.match(text, r.defaultYear)
}

func (r *Resolver) match(text string, defaultYear int) Match {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return Match{Kind: Failed}
	}
	if m, ok := r.exact(normalized, defaultYear); ok {
		return m
	}
	if m, ok := r.fuzzy(normalized, defaultYear); ok {
		return m
	}
	return Match{Kind: Failed}
}

func (r *Resolver) exact(text string, defaultYear int) (Match, bool) {
	for _, l := range layouts {
		t, err := time.Parse(l.value, text)
		if err != nil {
			continue
		}
		year := t.Year()
		if !l.hasYear {
			year = defaultYear
		}
		d, ok := r.date(year, t.Month(), t.Day())
		if !ok {
			continue
		}
		return Match{Kind: ExactMatch, Date: d, Layout: l.value}, true
	}
	return Match{}, false
}

func (r *Resolver) fuzzy(text string, defaultYear int) (Match, bool) {
	lower := strings.ToLower(text)

	var month time.Month
	for _, mn := range monthNames {
		if strings.Contains(lower, mn.name) {
			month = mn.month
			break
		}
	}
	if month == 0 {
		return Match{}, false
	}

	sm := dayToken.FindStringSubmatch(text)
	if sm == nil {
		return Match{}, false
	}
	day, _ := strconv.Atoi(sm[1])

	year := defaultYear
	if ym := yearToken.FindStringSubmatch(text); ym != nil {
		year, _ = strconv.Atoi(ym[1])
	}

	d, ok := r.date(year, month, day)
	if !ok {
		return Match{}, false
	}
	return Match{Kind: FuzzyMatch, Date: d}, true
}

// date builds midnight in r.loc and rejects combinations that time.Date
// would normalize, such as Feb 30.
func (r *Resolver) date(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || month < time.January || month > time.December {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, r.loc)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
