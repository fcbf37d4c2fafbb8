// Package bucket assigns timestamps to hour, day, week and month buckets in
// a fixed target timezone.
package bucket

import (
	"fmt"
	"time"
)

// Granularity is a bucket width.
type Granularity string

const (
	Hour  Granularity = "hour"
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts hour, day, week or month.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Hour, Day, Week, Month:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Key layouts.
const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
	HourLayout  = "2006-01-02T15"
	LocalLayout = "2006-01-02T15:04:05"
)

// TimezoneStatus compares an event's UTC and local calendar dates.
type TimezoneStatus string

const (
	Aligned          TimezoneStatus = "ALIGNED"
	TimezoneMismatch TimezoneStatus = "TIMEZONE_MISMATCH"
	NoTimestamp      TimezoneStatus = "NO_TIMESTAMP"
)

// DateInfo carries both calendar dates of an event.
type DateInfo struct {
	DateUTC   string         `json:"date_utc,omitempty"`
	DateLocal string         `json:"date_local,omitempty"`
	Status    TimezoneStatus `json:"timezone_status"`
}

// Bucketer buckets timestamps in one target timezone.
type Bucketer struct {
	loc *time.Location
}

// New creates a Bucketer. A nil location means UTC.
func New(loc *time.Location) *Bucketer {
	if loc == nil {
		loc = time.UTC
	}
	return &Bucketer{loc: loc}
}

// Location returns the target timezone.
func (b *Bucketer) Location() *time.Location {
	return b.loc
}

// Start returns the beginning of the bucket containing t, in the target timezone.
func (b *Bucketer) Start(t time.Time, g Granularity) time.Time {
	lt := t.In(b.loc)
	y, m, d := lt.Date()
	switch g {
	case Hour:
		return time.Date(y, m, d, lt.Hour(), 0, 0, 0, b.loc)
	case Week:
		// ISO weeks start on Monday.
		offset := (int(lt.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, b.loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, b.loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, b.loc)
	}
}

// Key returns the bucket label for t. Weeks are labelled by their Monday.
func (b *Bucketer) Key(t time.Time, g Granularity) string {
	start := b.Start(t, g)
	switch g {
	case Hour:
		return start.Format(HourLayout)
	case Month:
		return start.Format(MonthLayout)
	default:
		return start.Format(DayLayout)
	}
}

// Dates returns the UTC and local calendar dates of t and whether they differ.
func (b *Bucketer) Dates(t *time.Time) DateInfo {
	if t == nil {
		return DateInfo{Status: NoTimestamp}
	}
	info := DateInfo{
		DateUTC:   t.UTC().Format(DayLayout),
		DateLocal: t.In(b.loc).Format(DayLayout),
		Status:    Aligned,
	}
	if info.DateUTC != info.DateLocal {
		info.Status = TimezoneMismatch
	}
	return info
}

// Hour returns the hour of day in the target timezone.
func (b *Bucketer) Hour(t time.Time) int {
	return t.In(b.loc).Hour()
}

// Weekday returns the day of week in the target timezone.
func (b *Bucketer) Weekday(t time.Time) time.Weekday {
	return t.In(b.loc).Weekday()
}

// MondayIndex maps a weekday to 0..6 with Monday first.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Local formats t as a zone-less local timestamp.
func (b *Bucketer) Local(t time.Time) string {
	return t.In(b.loc).Format(LocalLayout)
}

// Weeks lists every week key from the week containing from through the week
// containing to, inclusive.
func (b *Bucketer) Weeks(from, to time.Time) []string {
	if to.Before(from) {
		return nil
	}
	var keys []string
	end := b.Start(to, Week)
	for w := b.Start(from, Week); !w.After(end); w = w.AddDate(0, 0, 7) {
		keys = append(keys, w.Format(DayLayout))
	}
	return keys
}
