package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhaobenny/ccsessions/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		model string
		want  Family
	}{
		{"claude-opus-4-5-20251101", FamilyOpus},
		{"claude-sonnet-4-5", FamilySonnet},
		{"claude-3-5-haiku-20241022", FamilyHaiku},
		{"opus-sonnet-hybrid", FamilyOpus},
		{"Claude-Opus", FamilyUnknown},
		{"<synthetic>", FamilyUnknown},
		{"", FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.model))
		})
	}
}

func TestResolve(t *testing.T) {
	exact := model.PriceVector{BaseInput: 99}
	table := NewTable(
		map[Family]model.PriceVector{FamilySonnet: {BaseInput: 3}},
		map[string]model.PriceVector{"claude-sonnet-x": exact, "local-llm": exact},
	)

	family, p := table.Resolve("claude-sonnet-x")
	assert.Equal(t, FamilySonnet, family)
	assert.Equal(t, 3.0, p.BaseInput, "family price wins over exact entry")

	family, p = table.Resolve("local-llm")
	assert.Equal(t, FamilyUnknown, family)
	assert.Equal(t, exact, p)

	_, p = table.Resolve("claude-haiku-4-5")
	assert.True(t, p.IsZero(), "unpriced family is free")

	_, p = table.Resolve("mystery")
	assert.True(t, p.IsZero())

	var nilTable *Table
	family, p = nilTable.Resolve("claude-opus-4")
	assert.Equal(t, FamilyOpus, family)
	assert.True(t, p.IsZero())
}

func TestNewTableCopiesInput(t *testing.T) {
	families := map[Family]model.PriceVector{FamilyOpus: {Output: 1}}
	table := NewTable(families, nil)
	families[FamilyOpus] = model.PriceVector{Output: 2}

	_, p := table.Resolve("claude-opus-4")
	assert.Equal(t, 1.0, p.Output)
}

func TestCalculateCost(t *testing.T) {
	sonnet := DefaultTable().Families()[FamilySonnet]
	usage := model.TokenUsage{
		InputTokens:              1_000_000,
		OutputTokens:             500_000,
		CacheCreationInputTokens: 3_000_000,
		Ephemeral5mInputTokens:   1_000_000,
		Ephemeral1hInputTokens:   2_000_000,
		CacheReadInputTokens:     10_000_000,
	}
	got := CalculateCost(usage, sonnet)
	assert.InDelta(t, 3.00, got.BaseInput, 1e-9)
	assert.InDelta(t, 3.75, got.Cache5m, 1e-9)
	assert.InDelta(t, 12.00, got.Cache1h, 1e-9)
	assert.InDelta(t, 3.00, got.CacheRead, 1e-9)
	assert.InDelta(t, 7.50, got.Output, 1e-9)
	assert.InDelta(t, 29.25, got.Total(), 1e-9)
}

func TestCalculateCostIgnoresUnsplitCacheCreation(t *testing.T) {
	got := CalculateCost(model.TokenUsage{CacheCreationInputTokens: 1_000_000}, model.PriceVector{Cache5mWrite: 10, Cache1hWrite: 20})
	assert.Zero(t, got.Total())
}

func TestEventCost(t *testing.T) {
	ev := &model.Event{Model: "claude-opus-4-5", Usage: model.TokenUsage{OutputTokens: 1000}}
	assert.InDelta(t, 0.025, DefaultTable().EventCost(ev).Output, 1e-12)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.13, Round(0.125, 2))
	assert.Equal(t, -0.13, Round(-0.125, 2))
	assert.Equal(t, 1.2346, Round(1.23456, 4))
	assert.Equal(t, 0.0, Round(0.00004, 4))
}

func TestRoundBreakdownRoundsTotalOnce(t *testing.T) {
	c := model.CostBreakdown{BaseInput: 0.004, Cache5m: 0.004, Output: 0.004}
	rounded, total := RoundBreakdown(c, 2)
	assert.Equal(t, model.CostBreakdown{}, rounded)
	assert.Equal(t, 0.01, total)
}
