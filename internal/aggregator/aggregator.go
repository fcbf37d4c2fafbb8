package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/pricing"
)

// Options for aggregation
type Options struct {
	Pricing  *pricing.Table
	Bucketer *bucket.Bucketer
}

func (o Options) bucketer() *bucket.Bucketer {
	if o.Bucketer == nil {
		return bucket.New(time.UTC)
	}
	return o.Bucketer
}

// rowKey is the dimension tuple of a row. Unused dimensions stay empty.
type rowKey struct {
	project string
	session string
	model   string
	bucket  string
	hour    int
}

// accumulator sums one row. Cost components are kept unrounded until finish.
type accumulator struct {
	key      rowKey
	usage    model.TokenUsage
	cost     model.CostBreakdown
	events   int
	sessions map[string]struct{}
}

func newAccumulator(key rowKey) *accumulator {
	return &accumulator{key: key, sessions: make(map[string]struct{})}
}

func (a *accumulator) add(ev *model.Event, cost model.CostBreakdown) {
	a.usage.Add(ev.Usage)
	a.cost.Add(cost)
	a.events++
	a.sessions[ev.SessionID] = struct{}{}
}

func (a *accumulator) finish(places int32, withHour bool) model.AggregateRow {
	cost, total := pricing.RoundBreakdown(a.cost, places)
	row := model.AggregateRow{
		ProjectID:      a.key.project,
		SessionID:      a.key.session,
		Model:          a.key.model,
		Bucket:         a.key.bucket,
		Usage:          a.usage,
		TotalAllTokens: a.usage.TotalAllTokens(),
		SessionCount:   len(a.sessions),
		EventCount:     a.events,
		Cost:           cost,
		TotalCost:      total,
	}
	if withHour {
		h := a.key.hour
		row.Hour = &h
	}
	return row
}

// grouper collects accumulators in first-seen order.
type grouper struct {
	opts   Options
	groups map[rowKey]*accumulator
	order  []rowKey
}

func newGrouper(opts Options) *grouper {
	return &grouper{opts: opts, groups: make(map[rowKey]*accumulator)}
}

func (g *grouper) add(key rowKey, ev *model.Event) {
	acc, ok := g.groups[key]
	if !ok {
		acc = newAccumulator(key)
		g.groups[key] = acc
		g.order = append(g.order, key)
	}
	acc.add(ev, g.opts.Pricing.EventCost(ev))
}

func (g *grouper) rows(places int32, withHour bool) []model.AggregateRow {
	rows := make([]model.AggregateRow, 0, len(g.order))
	for _, key := range g.order {
		rows = append(rows, g.groups[key].finish(places, withHour))
	}
	return rows
}

// ByPeriod aggregates usage by project, model and time bucket. Events
// without usage or without a timestamp are left out.
func ByPeriod(events []model.Event, opts Options, g bucket.Granularity) []model.AggregateRow {
	b := opts.bucketer()
	grp := newGrouper(opts)
	for i := range events {
		ev := &events[i]
		if !ev.HasUsage || ev.Timestamp == nil {
			continue
		}
		grp.add(rowKey{
			project: ev.ProjectID,
			model:   ev.Model,
			bucket:  b.Key(*ev.Timestamp, g),
		}, ev)
	}

	results := grp.rows(pricing.DetailPlaces, false)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Bucket != results[j].Bucket {
			return results[i].Bucket > results[j].Bucket // Newest first
		}
		if results[i].ProjectID != results[j].ProjectID {
			return results[i].ProjectID < results[j].ProjectID
		}
		return results[i].Model < results[j].Model
	})
	return results
}

// ByDay aggregates usage by day
func ByDay(events []model.Event, opts Options) []model.AggregateRow {
	return ByPeriod(events, opts, bucket.Day)
}

// ByWeek aggregates usage by ISO week
func ByWeek(events []model.Event, opts Options) []model.AggregateRow {
	return ByPeriod(events, opts, bucket.Week)
}

// ByMonth aggregates usage by month
func ByMonth(events []model.Event, opts Options) []model.AggregateRow {
	return ByPeriod(events, opts, bucket.Month)
}

// BySessionModel aggregates usage by project, session and model.
func BySessionModel(events []model.Event, opts Options) []model.AggregateRow {
	grp := newGrouper(opts)
	for i := range events {
		ev := &events[i]
		if !ev.HasUsage {
			continue
		}
		grp.add(rowKey{project: ev.ProjectID, session: ev.SessionID, model: ev.Model}, ev)
	}

	results := grp.rows(pricing.DetailPlaces, false)
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.Model < b.Model
	})
	return results
}

// ByProject aggregates usage per project, highest cost first.
func ByProject(events []model.Event, opts Options) []model.AggregateRow {
	grp := newGrouper(opts)
	for i := range events {
		ev := &events[i]
		if !ev.HasUsage {
			continue
		}
		grp.add(rowKey{project: ev.ProjectID}, ev)
	}

	results := grp.rows(pricing.SummaryPlaces, false)
	sortByCost(results)
	return results
}

// Projects converts ByProject rows into the project listing.
func Projects(events []model.Event, opts Options) []model.ProjectRow {
	rows := ByProject(events, opts)
	out := make([]model.ProjectRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ProjectRow{
			ProjectID:    r.ProjectID,
			TotalCost:    r.TotalCost,
			SessionCount: r.SessionCount,
			EventCount:   r.EventCount,
			TotalTokens:  r.TotalAllTokens,
		})
	}
	return out
}

func sortByCost(rows []model.AggregateRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalCost != rows[j].TotalCost {
			return rows[i].TotalCost > rows[j].TotalCost
		}
		return rows[i].ProjectID < rows[j].ProjectID
	})
}

// Summarize returns the overall rollup. Token and cost sums cover events
// with usage; timestamps and subagent files cover every event.
func Summarize(events []model.Event, opts Options) model.Summary {
	var (
		summary  model.Summary
		cost     model.CostBreakdown
		sessions = make(map[string]struct{})
		projects = make(map[string]struct{})
		subFiles = make(map[string]struct{})
	)

	for i := range events {
		ev := &events[i]
		if ev.Kind.IsSubagent() {
			subFiles[ev.FilePath] = struct{}{}
		}
		if ev.Timestamp != nil {
			if summary.FirstTimestamp == nil || ev.Timestamp.Before(*summary.FirstTimestamp) {
				summary.FirstTimestamp = ev.Timestamp
			}
			if summary.LastTimestamp == nil || ev.Timestamp.After(*summary.LastTimestamp) {
				summary.LastTimestamp = ev.Timestamp
			}
		}
		if !ev.HasUsage {
			continue
		}

		summary.Usage.Add(ev.Usage)
		if ev.SidechainTurn() {
			summary.SidechainUsage.Add(ev.Usage)
		} else {
			summary.MainUsage.Add(ev.Usage)
		}
		cost.Add(opts.Pricing.EventCost(ev))
		summary.EventCount++
		sessions[ev.SessionID] = struct{}{}
		projects[ev.ProjectID] = struct{}{}
	}

	summary.TotalAllTokens = summary.Usage.TotalAllTokens()
	summary.SessionCount = len(sessions)
	summary.ProjectCount = len(projects)
	summary.SubagentFileCount = len(subFiles)
	summary.Cost, summary.TotalCost = pricing.RoundBreakdown(cost, pricing.SummaryPlaces)
	return summary
}

// modelsOf returns the sorted distinct non-empty models in a set.
func modelsOf(set map[string]struct{}) []string {
	models := lo.Filter(lo.Keys(set), func(m string, _ int) bool { return m != "" })
	sort.Strings(models)
	return models
}
