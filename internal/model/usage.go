package model

// TokenUsage contains token counts from a Claude API response.
// Every field is a concrete integer; absent fields are zero.
type TokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	// Ephemeral5mInputTokens and Ephemeral1hInputTokens are a breakdown of
	// CacheCreationInputTokens by cache TTL, not additional tokens.
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
	u.Ephemeral5mInputTokens += other.Ephemeral5mInputTokens
	u.Ephemeral1hInputTokens += other.Ephemeral1hInputTokens
}

// TotalAllTokens returns input + cache creation + cache read + output.
func (u TokenUsage) TotalAllTokens() int64 {
	return u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens + u.OutputTokens
}

// PriceVector holds per-million-token prices in USD for one model family.
type PriceVector struct {
	BaseInput    float64 `yaml:"base_input" json:"base_input"`
	Cache5mWrite float64 `yaml:"cache_5m_write" json:"cache_5m_write"`
	Cache1hWrite float64 `yaml:"cache_1h_write" json:"cache_1h_write"`
	CacheRead    float64 `yaml:"cache_read" json:"cache_read"`
	Output       float64 `yaml:"output" json:"output"`
}

// IsZero reports whether every price is zero.
func (p PriceVector) IsZero() bool {
	return p == PriceVector{}
}

// CostBreakdown is the USD cost of a token set, split by price category.
type CostBreakdown struct {
	BaseInput float64 `json:"base_input_cost_usd"`
	Cache5m   float64 `json:"cache_5m_cost_usd"`
	Cache1h   float64 `json:"cache_1h_cost_usd"`
	CacheRead float64 `json:"cache_read_cost_usd"`
	Output    float64 `json:"output_cost_usd"`
}

// Add accumulates each component independently.
func (c *CostBreakdown) Add(other CostBreakdown) {
	c.BaseInput += other.BaseInput
	c.Cache5m += other.Cache5m
	c.Cache1h += other.Cache1h
	c.CacheRead += other.CacheRead
	c.Output += other.Output
}

// Total returns the sum of all components.
func (c CostBreakdown) Total() float64 {
	return c.BaseInput + c.Cache5m + c.Cache1h + c.CacheRead + c.Output
}
