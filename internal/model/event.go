package model

import (
	"encoding/json"
	"time"
)

// FileKind classifies a transcript file by its path shape.
type FileKind int

const (
	// MainFile is a session's own transcript: <project>/<session>.jsonl.
	MainFile FileKind = iota
	// LegacySubagentFile is an agent-*.jsonl file next to the main transcripts.
	// Its session is only known from the records' sessionId field.
	LegacySubagentFile
	// PathSubagentFile lives under <project>/<session>/subagents/.
	PathSubagentFile
)

func (k FileKind) String() string {
	switch k {
	case LegacySubagentFile:
		return "legacy_subagent"
	case PathSubagentFile:
		return "subagent"
	default:
		return "main"
	}
}

// IsSubagent reports whether the file holds a delegated sub-task transcript.
func (k FileKind) IsSubagent() bool {
	return k != MainFile
}

// FileInfo is everything derivable from a transcript's path alone.
type FileInfo struct {
	Path      string
	ProjectID string
	// SessionID is empty for LegacySubagentFile; the session comes from each record.
	SessionID string
	Kind      FileKind
	AgentSlug string
}

// Event is a normalized log record.
type Event struct {
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`

	UUID       string `json:"uuid,omitempty"`
	ParentUUID string `json:"parent_uuid,omitempty"`
	Type       string `json:"event_type"`

	// Timestamp is nil when the record had no parseable timestamp.
	Timestamp    *time.Time `json:"timestamp_utc,omitempty"`
	RawTimestamp string     `json:"timestamp,omitempty"`

	// IsSidechain is the record's isSidechain field; HasSidechainField tells
	// whether the field was present at all.
	IsSidechain       bool `json:"is_sidechain"`
	HasSidechainField bool `json:"-"`

	AgentID   string `json:"agent_id,omitempty"`
	AgentSlug string `json:"agent_slug,omitempty"`
	Slug      string `json:"slug,omitempty"`
	Version   string `json:"version,omitempty"`

	Role    string          `json:"message_role,omitempty"`
	Model   string          `json:"model_id,omitempty"`
	Content json.RawMessage `json:"message_content,omitempty"`

	Usage    TokenUsage `json:"usage"`
	HasUsage bool       `json:"-"`

	FilePath   string   `json:"filepath"`
	LineNumber int      `json:"line_number"`
	Sequence   int      `json:"event_seq"`
	Kind       FileKind `json:"-"`

	Raw json.RawMessage `json:"message_json,omitempty"`
}

// IsSubagentFile reports whether the event came from a subagent transcript.
func (e *Event) IsSubagentFile() bool {
	return e.Kind.IsSubagent()
}

// IsSubagent is true when either the file shape or the record flags the
// event as delegated work.
func (e *Event) IsSubagent() bool {
	return e.Kind.IsSubagent() || e.IsSidechain
}

// SidechainTurn decides whose turn produced the tokens. The record's own
// isSidechain field wins when present; records from files that predate the
// field fall back to the file shape.
func (e *Event) SidechainTurn() bool {
	if e.HasSidechainField {
		return e.IsSidechain
	}
	return e.Kind.IsSubagent()
}

// HasTimestamp reports whether the event carries a usable timestamp.
func (e *Event) HasTimestamp() bool {
	return e.Timestamp != nil
}
