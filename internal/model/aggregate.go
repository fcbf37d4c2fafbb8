package model

import "time"

// AggregateRow is one output row for a dimension tuple. Dimensions a view
// does not group by are left empty.
type AggregateRow struct {
	ProjectID string `json:"project_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model_id,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Hour      *int   `json:"hour,omitempty"`

	Usage          TokenUsage    `json:"usage"`
	TotalAllTokens int64         `json:"total_all_tokens"`
	SessionCount   int           `json:"session_count"`
	EventCount     int           `json:"event_count"`
	Cost           CostBreakdown `json:"cost"`
	TotalCost      float64       `json:"total_cost_usd"`
}

// Summary is the single-row overall rollup.
type Summary struct {
	Usage          TokenUsage    `json:"usage"`
	TotalAllTokens int64         `json:"total_all_tokens"`
	SessionCount   int           `json:"session_count"`
	ProjectCount   int           `json:"project_count"`
	EventCount     int           `json:"event_count"`
	Cost           CostBreakdown `json:"cost"`
	TotalCost      float64       `json:"grand_total_cost_usd"`

	// Tokens attributed to sidechain turns versus main-agent turns.
	SidechainUsage TokenUsage `json:"sidechain_usage"`
	MainUsage      TokenUsage `json:"main_usage"`
	// SubagentFileCount counts distinct subagent transcript files.
	SubagentFileCount int `json:"subagent_file_count"`

	FirstTimestamp *time.Time `json:"first_timestamp,omitempty"`
	LastTimestamp  *time.Time `json:"last_timestamp,omitempty"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ProjectID      string     `json:"project_id"`
	SessionID      string     `json:"session_id"`
	FirstTimestamp *time.Time `json:"first_timestamp"`
	LastTimestamp  *time.Time `json:"last_timestamp"`
	EventCount     int        `json:"event_count"`
	SubagentCount  int        `json:"subagent_count"`
	Usage          TokenUsage `json:"usage"`
	TotalCost      float64    `json:"total_cost_usd"`
	Models         []string   `json:"models"`
	FilePath       string     `json:"filepath"`
}

// ProjectRow is one row of the project listing.
type ProjectRow struct {
	ProjectID    string  `json:"project_id"`
	ProjectName  string  `json:"project_name,omitempty"`
	ProjectPath  string  `json:"project_path,omitempty"`
	TotalCost    float64 `json:"total_cost_usd"`
	SessionCount int     `json:"session_count"`
	EventCount   int     `json:"event_count"`
	TotalTokens  int64   `json:"total_all_tokens"`
}

// HourlyMatrix is a weekday x hour grid in the target timezone.
// Index 0 is Monday.
type HourlyMatrix struct {
	Tokens [7][24]int64   `json:"tokens"`
	Cost   [7][24]float64 `json:"cost"`
	Events [7][24]int     `json:"events"`
}

// TimelineEvent is one event on a project's per-session timeline.
type TimelineEvent struct {
	ProjectID              string    `json:"project_id"`
	SessionID              string    `json:"session_id"`
	EventSeq               int       `json:"event_seq"`
	Model                  string    `json:"model_id"`
	EventType              string    `json:"event_type"`
	MessageContent         string    `json:"message_content"`
	TimestampUTC           time.Time `json:"timestamp_utc"`
	TimestampLocal         string    `json:"timestamp_local"`
	InputTokens            int64     `json:"input_tokens"`
	OutputTokens           int64     `json:"output_tokens"`
	CumulativeOutputTokens int64     `json:"cumulative_output_tokens"`
	FirstEventTime         time.Time `json:"first_event_time"`
	IsSubagent             bool      `json:"is_subagent"`
}

// SchemaFieldObservation is one (json path, day) marker on the schema timeline.
type SchemaFieldObservation struct {
	JSONPath           string `json:"json_path"`
	EventDate          string `json:"event_date"`
	Version            string `json:"version"`
	HasRecordTimestamp bool   `json:"has_record_timestamp"`
	EventCount         int    `json:"event_count"`
	FirstSeen          string `json:"first_seen"`
}
