package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/pricing"
)

// DefaultTopProjects is the number of projects TopProjectsWeekly selects
// when n is not positive.
const DefaultTopProjects = 3

// RankProjects orders projects by total cost over the given events and
// returns the first n. Ties go to the lexically smaller project id.
func RankProjects(events []model.Event, opts Options, n int) []string {
	if n <= 0 {
		n = DefaultTopProjects
	}
	totals := make(map[string]float64)
	for i := range events {
		ev := &events[i]
		if !ev.HasUsage || ev.Timestamp == nil {
			continue
		}
		totals[ev.ProjectID] += opts.Pricing.EventCost(ev).Total()
	}

	projects := lo.Keys(totals)
	sort.Slice(projects, func(i, j int) bool {
		a, b := totals[projects[i]], totals[projects[j]]
		if a != b {
			return a > b
		}
		return projects[i] < projects[j]
	})
	if len(projects) > n {
		projects = projects[:n]
	}
	return projects
}

// TopProjectsWeekly ranks projects by cost, then re-aggregates only the
// selected projects by week. Every week between from and to is reported for
// every selected project, including weeks without activity. A zero from
// starts at the earliest event; a zero to ends at the latest.
func TopProjectsWeekly(events []model.Event, opts Options, n int, from, to time.Time) []model.AggregateRow {
	top := RankProjects(events, opts, n)
	if len(top) == 0 {
		return []model.AggregateRow{}
	}
	selected := lo.SliceToMap(top, func(p string) (string, struct{}) { return p, struct{}{} })

	if from.IsZero() {
		from = firstOf(events)
	}
	if to.IsZero() {
		to = lastOf(events)
	}

	b := opts.bucketer()
	grp := newGrouper(opts)
	// Seed every (project, week) cell so empty weeks survive.
	for _, project := range top {
		for _, week := range b.Weeks(from, to) {
			key := rowKey{project: project, bucket: week}
			grp.groups[key] = newAccumulator(key)
			grp.order = append(grp.order, key)
		}
	}
	for i := range events {
		ev := &events[i]
		if !ev.HasUsage || ev.Timestamp == nil {
			continue
		}
		if _, ok := selected[ev.ProjectID]; !ok {
			continue
		}
		grp.add(rowKey{project: ev.ProjectID, bucket: b.Key(*ev.Timestamp, bucket.Week)}, ev)
	}

	rank := make(map[string]int, len(top))
	for i, p := range top {
		rank[p] = i
	}
	results := grp.rows(pricing.DetailPlaces, false)
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ProjectID != b.ProjectID {
			return rank[a.ProjectID] < rank[b.ProjectID]
		}
		return a.Bucket < b.Bucket
	})
	return results
}
