// Package filter applies the shared time-range and project filters before
// any aggregation runs.
package filter

import (
	"strings"
	"time"

	"github.com/zhaobenny/ccsessions/internal/model"
)

// Filter restricts events by recency and project. The zero value matches
// everything.
type Filter struct {
	// Days keeps events newer than now minus Days days. Zero or negative
	// means no time filter.
	Days int
	// Project is an exact project id match. Empty means all projects.
	Project string

	// HomePrefix and BlockedDomains exclude whole domains of projects, where
	// the domain is the first path segment below the home directory.
	HomePrefix     string
	BlockedDomains []string
}

// Cutoff returns the earliest accepted time, or false when there is no time filter.
func (f Filter) Cutoff(now time.Time) (time.Time, bool) {
	if f.Days <= 0 {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(f.Days) * 24 * time.Hour), true
}

// MatchProject reports whether a project passes the project and domain filters.
func (f Filter) MatchProject(projectID string) bool {
	if f.Project != "" && projectID != f.Project {
		return false
	}
	return !f.Blocked(projectID)
}

// MatchTime reports whether t passes the time filter. A nil t only passes
// when there is no time filter.
func (f Filter) MatchTime(t *time.Time, now time.Time) bool {
	cutoff, ok := f.Cutoff(now)
	if !ok {
		return true
	}
	return t != nil && !t.Before(cutoff)
}

// Match reports whether an event passes every filter.
func (f Filter) Match(ev *model.Event, now time.Time) bool {
	return f.MatchProject(ev.ProjectID) && f.MatchTime(ev.Timestamp, now)
}

// Apply returns the events that pass the filter, in their original order.
func (f Filter) Apply(events []model.Event, now time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if f.Match(&events[i], now) {
			out = append(out, events[i])
		}
	}
	return out
}

// KeepFile lets a scanner skip files whose project cannot match.
func (f Filter) KeepFile(info model.FileInfo) bool {
	return f.MatchProject(info.ProjectID)
}

// Blocked reports whether the project's domain is in BlockedDomains.
func (f Filter) Blocked(projectID string) bool {
	if len(f.BlockedDomains) == 0 {
		return false
	}
	domain, ok := ExtractDomain(f.HomePrefix, projectID)
	if !ok {
		return false
	}
	for _, d := range f.BlockedDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// ExtractDomain returns the first segment after homePrefix in an encoded
// project id: "-Users-me-work-api" with prefix "-Users-me" gives "work".
// A dot directory keeps its dot: "-Users-me-.config-x" gives ".config".
func ExtractDomain(homePrefix, projectID string) (string, bool) {
	if homePrefix == "" || !strings.HasPrefix(projectID, homePrefix+"-") {
		return "", false
	}
	rest := strings.TrimPrefix(projectID, homePrefix+"-")
	// Claude encodes "/." as "--".
	if strings.HasPrefix(rest, "-") {
		rest = "." + rest[1:]
	}
	if i := strings.Index(rest, "-"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || rest == "." {
		return "", false
	}
	return rest, true
}
