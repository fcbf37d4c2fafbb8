package aggregator

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/zhaobenny/ccsessions/internal/model"
)

// PreviewLength caps the message text carried by a timeline event.
const PreviewLength = 200

// Timeline returns timestamped events grouped by session. Sessions are
// ordered by their first event, events within a session by time, and output
// tokens accumulate per session.
func Timeline(events []model.Event, opts Options) []model.TimelineEvent {
	b := opts.bucketer()

	bySession := make(map[sessionKey][]*model.Event)
	var order []sessionKey
	for i := range events {
		ev := &events[i]
		if ev.Timestamp == nil {
			continue
		}
		key := sessionKey{project: ev.ProjectID, session: ev.SessionID}
		if _, ok := bySession[key]; !ok {
			order = append(order, key)
		}
		bySession[key] = append(bySession[key], ev)
	}

	firsts := make(map[sessionKey]time.Time, len(order))
	for _, key := range order {
		evs := bySession[key]
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].Timestamp.Before(*evs[j].Timestamp)
		})
		firsts[key] = *evs[0].Timestamp
	}
	sort.SliceStable(order, func(i, j int) bool {
		return firsts[order[i]].Before(firsts[order[j]])
	})

	var results []model.TimelineEvent
	for _, key := range order {
		var cumulative int64
		for seq, ev := range bySession[key] {
			cumulative += ev.Usage.OutputTokens
			results = append(results, model.TimelineEvent{
				ProjectID:              ev.ProjectID,
				SessionID:              ev.SessionID,
				EventSeq:               seq + 1,
				Model:                  ev.Model,
				EventType:              ev.Type,
				MessageContent:         ContentPreview(ev.Content, PreviewLength),
				TimestampUTC:           *ev.Timestamp,
				TimestampLocal:         b.Local(*ev.Timestamp),
				InputTokens:            ev.Usage.InputTokens,
				OutputTokens:           ev.Usage.OutputTokens,
				CumulativeOutputTokens: cumulative,
				FirstEventTime:         firsts[key],
				IsSubagent:             ev.IsSubagent(),
			})
		}
	}
	if results == nil {
		results = []model.TimelineEvent{}
	}
	return results
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

// ContentPreview flattens message content to plain text, cut to limit runes.
// Content is either a string or a list of typed blocks.
func ContentPreview(content json.RawMessage, limit int) string {
	if len(content) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		var blocks []contentBlock
		if err := json.Unmarshal(content, &blocks); err != nil {
			return ""
		}
		parts := make([]string, 0, len(blocks))
		for _, blk := range blocks {
			switch blk.Type {
			case "text":
				parts = append(parts, blk.Text)
			case "tool_use":
				parts = append(parts, "["+blk.Name+"]")
			case "tool_result":
				parts = append(parts, ContentPreview(blk.Content, limit))
			}
		}
		text = strings.Join(parts, " ")
	}

	text = strings.TrimSpace(text)
	if r := []rune(text); limit > 0 && len(r) > limit {
		return string(r[:limit])
	}
	return text
}
