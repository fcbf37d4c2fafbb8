package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/zhaobenny/ccsessions/internal/model"
)

const perMillion = 1e6

// Rounding precisions used by the views.
const (
	DetailPlaces  int32 = 4
	SummaryPlaces int32 = 2
)

// CalculateCost prices a token set. Nothing is rounded here.
func CalculateCost(usage model.TokenUsage, p model.PriceVector) model.CostBreakdown {
	return model.CostBreakdown{
		BaseInput: float64(usage.InputTokens) / perMillion * p.BaseInput,
		Cache5m:   float64(usage.Ephemeral5mInputTokens) / perMillion * p.Cache5mWrite,
		Cache1h:   float64(usage.Ephemeral1hInputTokens) / perMillion * p.Cache1hWrite,
		CacheRead: float64(usage.CacheReadInputTokens) / perMillion * p.CacheRead,
		Output:    float64(usage.OutputTokens) / perMillion * p.Output,
	}
}

// EventCost prices one event against the table.
func (t *Table) EventCost(ev *model.Event) model.CostBreakdown {
	_, p := t.Resolve(ev.Model)
	return CalculateCost(ev.Usage, p)
}

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundBreakdown rounds every component and returns the rounded total of the
// unrounded components, so the total is never a sum of rounded parts.
func RoundBreakdown(c model.CostBreakdown, places int32) (model.CostBreakdown, float64) {
	total := Round(c.Total(), places)
	return model.CostBreakdown{
		BaseInput: Round(c.BaseInput, places),
		Cache5m:   Round(c.Cache5m, places),
		Cache1h:   Round(c.Cache1h, places),
		CacheRead: Round(c.CacheRead, places),
		Output:    Round(c.Output, places),
	}, total
}
