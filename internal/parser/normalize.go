package parser

import (
	"sort"
	"time"

	"github.com/zhaobenny/ccsessions/internal/model"
)

// skipTypes are record types that never become events.
var skipTypes = map[string]bool{
	"file-history-snapshot": true,
}

// timestampLayouts are tried in order. Zone-less timestamps are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// ParseTimestamp parses an ISO-8601 timestamp. It returns nil for empty or
// malformed input.
func ParseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Normalize turns a raw record into an event. It returns false for records
// without a type and for record types that are not events.
func Normalize(info model.FileInfo, rec RawRecord, lineNumber int) (model.Event, bool) {
	eventType := deref(rec.Type)
	if eventType == "" || skipTypes[eventType] {
		return model.Event{}, false
	}

	ev := model.Event{
		ProjectID:    info.ProjectID,
		SessionID:    resolveSessionID(info, rec),
		UUID:         deref(rec.UUID),
		ParentUUID:   deref(rec.ParentUUID),
		Type:         eventType,
		Timestamp:    ParseTimestamp(deref(rec.Timestamp)),
		RawTimestamp: deref(rec.Timestamp),
		AgentID:      deref(rec.AgentID),
		AgentSlug:    info.AgentSlug,
		Slug:         deref(rec.Slug),
		Version:      deref(rec.Version),
		FilePath:     info.Path,
		LineNumber:   lineNumber,
		Kind:         info.Kind,
		Raw:          rec.Line,
	}

	if rec.IsSidechain != nil {
		ev.HasSidechainField = true
		ev.IsSidechain = *rec.IsSidechain
	}

	if msg := rec.Message; msg != nil {
		ev.Role = deref(msg.Role)
		ev.Model = deref(msg.Model)
		ev.Content = msg.Content
		if u := msg.Usage; u != nil {
			ev.HasUsage = true
			ev.Usage = model.TokenUsage{
				InputTokens:              coalesce(u.InputTokens),
				OutputTokens:             coalesce(u.OutputTokens),
				CacheReadInputTokens:     coalesce(u.CacheReadInputTokens),
				CacheCreationInputTokens: coalesce(u.CacheCreationInputTokens),
			}
			if cc := u.CacheCreation; cc != nil {
				ev.Usage.Ephemeral5mInputTokens = coalesce(cc.Ephemeral5mInputTokens)
				ev.Usage.Ephemeral1hInputTokens = coalesce(cc.Ephemeral1hInputTokens)
			}
		}
	}

	return ev, true
}

// resolveSessionID applies the file-shape rules. Legacy agent files only
// know their session through the records themselves.
func resolveSessionID(info model.FileInfo, rec RawRecord) string {
	if info.Kind == model.LegacySubagentFile {
		if sid := deref(rec.SessionID); sid != "" {
			return sid
		}
		return FileStem(info.Path)
	}
	if info.SessionID != "" {
		return info.SessionID
	}
	return deref(rec.SessionID)
}

// AssignSequence numbers events 1..n by timestamp, ties kept in file order.
// Events without a timestamp get 0.
func AssignSequence(events []model.Event) {
	idx := make([]int, 0, len(events))
	for i := range events {
		events[i].Sequence = 0
		if events[i].Timestamp != nil {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return events[idx[a]].Timestamp.Before(*events[idx[b]].Timestamp)
	})
	for rank, i := range idx {
		events[i].Sequence = rank + 1
	}
}
