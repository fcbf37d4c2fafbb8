package parser

import (
	"bytes"
	"encoding/json"
)

// RawRecord is one parsed line from a transcript. Every field is optional;
// a nil pointer means the key was absent, null, or of an unexpected type.
type RawRecord struct {
	UUID        *string
	ParentUUID  *string
	Type        *string
	Timestamp   *string
	SessionID   *string
	AgentID     *string
	IsSidechain *bool
	Slug        *string
	Version     *string
	Message     *RawMessage

	// Line is the verbatim JSON object the record was parsed from.
	Line json.RawMessage
}

// RawMessage is the nested message envelope.
type RawMessage struct {
	Role    *string
	Model   *string
	Content json.RawMessage
	Usage   *RawUsage
}

// RawUsage holds token counts from the API response.
type RawUsage struct {
	InputTokens              *int64
	OutputTokens             *int64
	CacheReadInputTokens     *int64
	CacheCreationInputTokens *int64
	CacheCreation            *RawCacheCreation
}

// RawCacheCreation holds the breakdown of cache write tokens by TTL bucket.
type RawCacheCreation struct {
	Ephemeral5mInputTokens *int64
	Ephemeral1hInputTokens *int64
}

type object map[string]json.RawMessage

// ParseLine parses one JSONL line. It returns false for anything that is
// not a JSON object.
func ParseLine(line []byte) (RawRecord, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return RawRecord{}, false
	}

	var fields object
	if err := json.Unmarshal(line, &fields); err != nil {
		return RawRecord{}, false
	}

	rec := RawRecord{
		UUID:        fields.str("uuid"),
		ParentUUID:  fields.str("parentUuid"),
		Type:        fields.str("type"),
		Timestamp:   fields.str("timestamp"),
		SessionID:   fields.str("sessionId"),
		AgentID:     fields.str("agentId"),
		IsSidechain: fields.boolean("isSidechain"),
		Slug:        fields.str("slug"),
		Version:     fields.str("version"),
		Line:        append(json.RawMessage(nil), line...),
	}

	if msg, ok := fields.obj("message"); ok {
		rec.Message = &RawMessage{
			Role:    msg.str("role"),
			Model:   msg.str("model"),
			Content: msg["content"],
		}
		if usage, ok := msg.obj("usage"); ok {
			rec.Message.Usage = &RawUsage{
				InputTokens:              usage.integer("input_tokens"),
				OutputTokens:             usage.integer("output_tokens"),
				CacheReadInputTokens:     usage.integer("cache_read_input_tokens"),
				CacheCreationInputTokens: usage.integer("cache_creation_input_tokens"),
			}
			if cc, ok := usage.obj("cache_creation"); ok {
				rec.Message.Usage.CacheCreation = &RawCacheCreation{
					Ephemeral5mInputTokens: cc.integer("ephemeral_5m_input_tokens"),
					Ephemeral1hInputTokens: cc.integer("ephemeral_1h_input_tokens"),
				}
			}
		}
	}

	return rec, true
}

// get returns the raw value for key. A JSON null counts as absent.
func (o object) get(key string) (json.RawMessage, bool) {
	raw, ok := o[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (o object) str(key string) *string {
	raw, ok := o.get(key)
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func (o object) boolean(key string) *bool {
	raw, ok := o.get(key)
	if !ok {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}

func (o object) integer(key string) *int64 {
	raw, ok := o.get(key)
	if !ok {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	// Some writers emit 12.0 for integral counts.
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	n = int64(f)
	return &n
}

func (o object) obj(key string) (object, bool) {
	raw, ok := o.get(key)
	if !ok {
		return nil, false
	}
	var nested object
	if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
		return nil, false
	}
	return nested, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func coalesce(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
