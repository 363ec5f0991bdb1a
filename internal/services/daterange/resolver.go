// Package daterange turns natural-language date phrases into concrete
// YYYY-MM-DD ranges.
package daterange

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog/log"
)

// Layout is the date format of every Range bound.
const Layout = "2006-01-02"

// DefaultWindowDays is the length of the trailing window used when no phrase matches.
const DefaultWindowDays = 7

// Range represents an inclusive date range
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var (
	todayPattern     = regexp.MustCompile(`\btoday\b`)
	yesterdayPattern = regexp.MustCompile(`\byesterday\b`)
	lastWeekPattern  = regexp.MustCompile(`last\s+week`)
	thisWeekPattern  = regexp.MustCompile(`this\s+week`)
	lastMonthPattern = regexp.MustCompile(`last\s+month`)
	thisMonthPattern = regexp.MustCompile(`this\s+month`)
	yearPattern      = regexp.MustCompile(`\b\d{4}\b`)
	monthYearPattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{4})\b`)
)

// Resolver converts free text into a Range. It has no mutable state and is
// safe for concurrent use.
type Resolver struct {
	now func() time.Time
}

type Option func(*Resolver)

// WithClock fixes the reference time, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: anything it cannot interpret yields the trailing
// seven-day window ending today.
func (r *Resolver) Resolve(text string) (rng Range) {
	now := r.now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Str("input", text).Interface("panic", rec).Msg("Date range parsing failed, using default window")
			rng = Default(now)
		}
	}()

	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("Date range parsing got empty input, using default window")
		return Default(now)
	}

	lower := strings.ToLower(text)
	today := startOfDay(now)

	switch {
	case todayPattern.MatchString(lower):
		return span(today, today)
	case yesterdayPattern.MatchString(lower):
		yesterday := today.AddDate(0, 0, -1)
		return span(yesterday, yesterday)
	case lastWeekPattern.MatchString(lower):
		start := startOfWeek(today).AddDate(0, 0, -7)
		return span(start, start.AddDate(0, 0, 6))
	case thisWeekPattern.MatchString(lower):
		start := startOfWeek(today)
		return span(start, start.AddDate(0, 0, 6))
	case lastMonthPattern.MatchString(lower):
		start := startOfMonth(today).AddDate(0, -1, 0)
		return span(start, endOfMonth(start))
	case thisMonthPattern.MatchString(lower):
		start := startOfMonth(today)
		return span(start, endOfMonth(start))
	case yearPattern.MatchString(lower):
		parsed, ok := parseMonth(text, now.Location())
		if !ok {
			log.Warn().Str("input", text).Msg("Could not parse dated phrase, using default window")
			return Default(now)
		}
		start := startOfMonth(parsed)
		return span(start, endOfMonth(start))
	default:
		return Default(now)
	}
}

// Default returns the trailing seven-day window ending on now's date.
func Default(now time.Time) Range {
	return Range{
		From: now.AddDate(0, 0, -DefaultWindowDays).Format(Layout),
		To:   now.Format(Layout),
	}
}

// parseMonth tries the whole text as a date first, then a "Month YYYY" fragment.
func parseMonth(text string, loc *time.Location) (time.Time, bool) {
	if t, err := dateparse.ParseIn(strings.TrimSpace(text), loc); err == nil {
		return t, true
	}

	m := monthYearPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	month := strings.TrimSuffix(m[1], ".")
	layout := "January 2006"
	if len(month) <= 4 {
		layout = "Jan 2006"
		month = month[:3]
	}

	t, err := time.ParseInLocation(layout, month+" "+m[2], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func span(from, to time.Time) Range {
	return Range{From: from.Format(Layout), To: to.Format(Layout)}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's ISO week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, -1)
}
