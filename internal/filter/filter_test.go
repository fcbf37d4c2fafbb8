package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhaobenny/ccsessions/internal/model"
)

var now = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

func at(days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func events() []model.Event {
	return []model.Event{
		{ProjectID: "-Users-me-work-api", UUID: "recent", Timestamp: at(1)},
		{ProjectID: "-Users-me-work-api", UUID: "old", Timestamp: at(40)},
		{ProjectID: "-Users-me-tmp-x", UUID: "tmp", Timestamp: at(2)},
		{ProjectID: "-Users-me-work", UUID: "prefix", Timestamp: at(3)},
		{ProjectID: "-Users-me-work-api", UUID: "untimed"},
	}
}

func uuids(evs []model.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.UUID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"zero value keeps all", Filter{}, []string{"recent", "old", "tmp", "prefix", "untimed"}},
		{"negative days keeps all", Filter{Days: -3}, []string{"recent", "old", "tmp", "prefix", "untimed"}},
		{"days drops old and untimed", Filter{Days: 30}, []string{"recent", "tmp", "prefix"}},
		{"exact project", Filter{Project: "-Users-me-work"}, []string{"prefix"}},
		{
			"blocked domain",
			Filter{HomePrefix: "-Users-me", BlockedDomains: []string{"tmp"}},
			[]string{"recent", "old", "prefix", "untimed"},
		},
		{"unknown project", Filter{Project: "nope"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uuids(tt.f.Apply(events(), now)))
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := Filter{Days: 30, Project: "-Users-me-work-api"}
	once := f.Apply(events(), now)
	assert.Equal(t, once, f.Apply(once, now))
}

func TestCutoffBoundaryIsInclusive(t *testing.T) {
	f := Filter{Days: 1}
	cutoff, ok := f.Cutoff(now)
	assert.True(t, ok)
	assert.True(t, f.MatchTime(&cutoff, now))
	before := cutoff.Add(-time.Nanosecond)
	assert.False(t, f.MatchTime(&before, now))
}

func TestKeepFile(t *testing.T) {
	f := Filter{Project: "p1"}
	assert.True(t, f.KeepFile(model.FileInfo{ProjectID: "p1"}))
	assert.False(t, f.KeepFile(model.FileInfo{ProjectID: "p2"}))
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		prefix, id string
		want       string
		ok         bool
	}{
		{"-Users-me", "-Users-me-work-api", "work", true},
		{"-Users-me", "-Users-me-work", "work", true},
		{"-Users-me", "-Users-me--config-nvim", ".config", true},
		{"-Users-me", "-Users-me", "", false},
		{"-Users-me", "-Users-meow-x", "", false},
		{"-Users-me", "-opt-app", "", false},
		{"", "-Users-me-work", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := ExtractDomain(tt.prefix, tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
