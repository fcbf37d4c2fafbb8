package pricing

import (
	"strings"

	"github.com/zhaobenny/ccsessions/internal/model"
)

// Family is a pricing-relevant grouping of model identifiers.
type Family string

const (
	FamilyOpus    Family = "opus"
	FamilySonnet  Family = "sonnet"
	FamilyHaiku   Family = "haiku"
	FamilyUnknown Family = "unknown"
)

// familyOrder is the match order; the first substring found wins.
var familyOrder = []Family{FamilyOpus, FamilySonnet, FamilyHaiku}

// Classify maps a model identifier to its family by case-sensitive substring.
func Classify(modelID string) Family {
	for _, f := range familyOrder {
		if strings.Contains(modelID, string(f)) {
			return f
		}
	}
	return FamilyUnknown
}

// Table is an immutable price lookup. Build it once and pass it around.
type Table struct {
	families map[Family]model.PriceVector
	models   map[string]model.PriceVector
}

// NewTable copies the given family and exact-model prices into a new table.
func NewTable(families map[Family]model.PriceVector, models map[string]model.PriceVector) *Table {
	t := &Table{
		families: make(map[Family]model.PriceVector, len(families)),
		models:   make(map[string]model.PriceVector, len(models)),
	}
	for f, p := range families {
		t.families[f] = p
	}
	for m, p := range models {
		t.models[m] = p
	}
	return t
}

// DefaultTable returns embedded per-family list prices (USD per million tokens).
func DefaultTable() *Table {
	return NewTable(map[Family]model.PriceVector{
		// Opus 4.5
		FamilyOpus: {
			BaseInput:    5.00,
			Cache5mWrite: 6.25,
			Cache1hWrite: 10.00,
			CacheRead:    0.50,
			Output:       25.00,
		},
		// Sonnet 4 / 4.5
		FamilySonnet: {
			BaseInput:    3.00,
			Cache5mWrite: 3.75,
			Cache1hWrite: 6.00,
			CacheRead:    0.30,
			Output:       15.00,
		},
		// Haiku 4.5
		FamilyHaiku: {
			BaseInput:    1.00,
			Cache5mWrite: 1.25,
			Cache1hWrite: 2.00,
			CacheRead:    0.10,
			Output:       5.00,
		},
	}, nil)
}

// Resolve returns the family and price vector for a model. A priced family
// wins over an exact model entry; anything unmatched is free.
func (t *Table) Resolve(modelID string) (Family, model.PriceVector) {
	family := Classify(modelID)
	if t == nil {
		return family, model.PriceVector{}
	}
	if p, ok := t.families[family]; ok && family != FamilyUnknown {
		return family, p
	}
	if p, ok := t.models[modelID]; ok {
		return family, p
	}
	return family, model.PriceVector{}
}

// Families returns a copy of the family prices.
func (t *Table) Families() map[Family]model.PriceVector {
	out := make(map[Family]model.PriceVector, len(t.families))
	for f, p := range t.families {
		out[f] = p
	}
	return out
}
