package aggregator

import (
	"sort"
	"time"

	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/pricing"
)

type sessionKey struct {
	project string
	session string
}

type sessionAcc struct {
	summary   model.SessionSummary
	cost      model.CostBreakdown
	models    map[string]struct{}
	subagents map[string]struct{}
}

// Sessions lists sessions, most recently active first. Event counts cover
// every event; tokens and cost cover events with usage. Subagent transcript
// files are counted per session, after legacy files were folded into their
// parent session.
func Sessions(events []model.Event, opts Options) []model.SessionSummary {
	groups := make(map[sessionKey]*sessionAcc)
	var order []sessionKey

	for i := range events {
		ev := &events[i]
		key := sessionKey{project: ev.ProjectID, session: ev.SessionID}
		acc, ok := groups[key]
		if !ok {
			acc = &sessionAcc{
				summary: model.SessionSummary{
					ProjectID: ev.ProjectID,
					SessionID: ev.SessionID,
				},
				models:    make(map[string]struct{}),
				subagents: make(map[string]struct{}),
			}
			groups[key] = acc
			order = append(order, key)
		}

		s := &acc.summary
		s.EventCount++
		if ev.Kind.IsSubagent() {
			acc.subagents[ev.FilePath] = struct{}{}
		} else if s.FilePath == "" {
			s.FilePath = ev.FilePath
		}
		if ev.Timestamp != nil {
			if s.FirstTimestamp == nil || ev.Timestamp.Before(*s.FirstTimestamp) {
				s.FirstTimestamp = ev.Timestamp
			}
			if s.LastTimestamp == nil || ev.Timestamp.After(*s.LastTimestamp) {
				s.LastTimestamp = ev.Timestamp
			}
		}
		if !ev.HasUsage {
			continue
		}
		s.Usage.Add(ev.Usage)
		acc.cost.Add(opts.Pricing.EventCost(ev))
		acc.models[ev.Model] = struct{}{}
	}

	results := make([]model.SessionSummary, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		s := acc.summary
		s.SubagentCount = len(acc.subagents)
		s.Models = modelsOf(acc.models)
		_, s.TotalCost = pricing.RoundBreakdown(acc.cost, pricing.DetailPlaces)
		results = append(results, s)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].LastTimestamp, results[j].LastTimestamp
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return results
}

// lastOf returns the latest timestamp among events, or the zero time.
func lastOf(events []model.Event) time.Time {
	var last time.Time
	for i := range events {
		if t := events[i].Timestamp; t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}

// firstOf returns the earliest timestamp among events, or the zero time.
func firstOf(events []model.Event) time.Time {
	var first time.Time
	for i := range events {
		if t := events[i].Timestamp; t != nil && (first.IsZero() || t.Before(first)) {
			first = *t
		}
	}
	return first
}
