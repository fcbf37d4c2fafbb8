package aggregator

import (
	"sort"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/pricing"
)

// HourlyResult holds the per-hour rows and the weekday x hour matrix.
type HourlyResult struct {
	Rows   []model.AggregateRow `json:"rows"`
	Matrix model.HourlyMatrix   `json:"matrix"`
}

// Hourly aggregates usage by local day, local hour and project. The matrix
// uses the local weekday, which can differ from the UTC weekday.
func Hourly(events []model.Event, opts Options) HourlyResult {
	b := opts.bucketer()
	grp := newGrouper(opts)
	var (
		matrix model.HourlyMatrix
		cells  [7][24]float64
	)

	for i := range events {
		ev := &events[i]
		if !ev.HasUsage || ev.Timestamp == nil {
			continue
		}
		hour := b.Hour(*ev.Timestamp)
		grp.add(rowKey{
			project: ev.ProjectID,
			bucket:  b.Key(*ev.Timestamp, bucket.Day),
			hour:    hour,
		}, ev)

		day := bucket.MondayIndex(b.Weekday(*ev.Timestamp))
		matrix.Tokens[day][hour] += ev.Usage.TotalAllTokens()
		matrix.Events[day][hour]++
		cells[day][hour] += opts.Pricing.EventCost(ev).Total()
	}

	for d := range cells {
		for h := range cells[d] {
			matrix.Cost[d][h] = pricing.Round(cells[d][h], pricing.DetailPlaces)
		}
	}

	rows := grp.rows(pricing.DetailPlaces, true)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Bucket != b.Bucket {
			return a.Bucket > b.Bucket
		}
		if *a.Hour != *b.Hour {
			return *a.Hour < *b.Hour
		}
		return a.ProjectID < b.ProjectID
	})
	return HourlyResult{Rows: rows, Matrix: matrix}
}
