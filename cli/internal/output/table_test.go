package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/ccsessions/internal/model"
)

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		1234567:   "1,234,567",
		-1234567:  "-1,234,567",
		100000000: "100,000,000",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in))
	}
}

func TestShortenModelName(t *testing.T) {
	assert.Equal(t, "sonnet-4-5", shortenModelName("claude-sonnet-4-5-20250929"))
	assert.Equal(t, "opus-4-5", shortenModelName("claude-opus-4-5"))
	assert.Equal(t, "<synthetic>", shortenModelName("<synthetic>"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "日本…", truncate("日本語テキスト", 3))
}

func TestPrintUsage(t *testing.T) {
	rows := []model.AggregateRow{
		{ProjectID: "p1", Model: "claude-sonnet-4-5", Bucket: "2025-01-15", Usage: model.TokenUsage{InputTokens: 1_000_000}, TotalCost: 3},
		{ProjectID: "p2", Model: "claude-opus-4-5", Bucket: "2025-01-14", Usage: model.TokenUsage{OutputTokens: 2000}, TotalCost: 0.05},
	}

	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		PrintUsage(&buf, rows, "Date", TableOptions{Width: 200})
		out := buf.String()
		assert.Contains(t, out, "Cache Create")
		assert.Contains(t, out, "2025-01-15  p1  sonnet-4-5")
		assert.Contains(t, out, "1,000,000")
		assert.Contains(t, out, "$3.05")
	})

	t.Run("compact", func(t *testing.T) {
		var buf bytes.Buffer
		PrintUsage(&buf, rows, "Date", TableOptions{ForceCompact: true})
		out := buf.String()
		assert.NotContains(t, out, "Cache Create")
		assert.Contains(t, out, "Compact mode")
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		PrintUsage(&buf, nil, "Date", TableOptions{})
		assert.Equal(t, "No usage data found.\n", buf.String())
	})
}

func TestPrintSummary(t *testing.T) {
	ts := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	PrintSummary(&buf, model.Summary{ProjectCount: 2, TotalCost: 15.5, FirstTimestamp: &ts}, time.UTC)
	out := buf.String()
	assert.Contains(t, out, "$15.50")
	assert.Contains(t, out, "2025-01-15 10:00 .. -")
}

func TestPrintHourly(t *testing.T) {
	var m model.HourlyMatrix
	m.Events[2][10] = 4
	var buf bytes.Buffer
	PrintHourly(&buf, m)
	lines := strings.Split(buf.String(), "\n")
	require.Greater(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[4], "Wed"))
	assert.Contains(t, lines[4], "   4")
}

func TestPrintSchemaMarksFallbackDates(t *testing.T) {
	var buf bytes.Buffer
	PrintSchema(&buf, []model.SchemaFieldObservation{
		{JSONPath: "messageId", EventDate: "2025-01-15", FirstSeen: "2025-01-15", EventCount: 1},
	})
	assert.Contains(t, buf.String(), "2025-01-15*")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, []model.ProjectRow{{ProjectID: "p1", TotalCost: 1.5}}))
	assert.Contains(t, buf.String(), `"total_cost_usd": 1.5`)
}
