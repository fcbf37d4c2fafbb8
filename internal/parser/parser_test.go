package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhaobenny/ccsessions/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeJSONL(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ok    bool
		check func(t *testing.T, rec RawRecord)
	}{
		{name: "empty", line: "", ok: false},
		{name: "not json", line: "hello", ok: false},
		{name: "array", line: `[1,2]`, ok: false},
		{name: "truncated", line: `{"type":"user"`, ok: false},
		{
			name: "wrong types become absent",
			line: `{"type":"user","uuid":7,"isSidechain":"yes","timestamp":null}`,
			ok:   true,
			check: func(t *testing.T, rec RawRecord) {
				require.NotNil(t, rec.Type)
				assert.Equal(t, "user", *rec.Type)
				assert.Nil(t, rec.UUID)
				assert.Nil(t, rec.IsSidechain)
				assert.Nil(t, rec.Timestamp)
			},
		},
		{
			name: "usage with cache breakdown",
			line: `{"type":"assistant","message":{"model":"m","usage":{"input_tokens":5,"output_tokens":7.0,"cache_creation":{"ephemeral_1h_input_tokens":3}}}}`,
			ok:   true,
			check: func(t *testing.T, rec RawRecord) {
				require.NotNil(t, rec.Message)
				require.NotNil(t, rec.Message.Usage)
				u := rec.Message.Usage
				assert.Equal(t, int64(5), *u.InputTokens)
				assert.Equal(t, int64(7), *u.OutputTokens)
				assert.Nil(t, u.CacheReadInputTokens)
				require.NotNil(t, u.CacheCreation)
				assert.Nil(t, u.CacheCreation.Ephemeral5mInputTokens)
				assert.Equal(t, int64(3), *u.CacheCreation.Ephemeral1hInputTokens)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := ParseLine([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestClassifyPath(t *testing.T) {
	root := "/home/me/.claude/projects"
	tests := []struct {
		name string
		path string
		want model.FileInfo
	}{
		{
			name: "main file",
			path: root + "/-home-me-app/abc.jsonl",
			want: model.FileInfo{ProjectID: "-home-me-app", SessionID: "abc", Kind: model.MainFile},
		},
		{
			name: "legacy agent file",
			path: root + "/-home-me-app/agent-7.jsonl",
			want: model.FileInfo{ProjectID: "-home-me-app", Kind: model.LegacySubagentFile, AgentSlug: "7"},
		},
		{
			name: "path subagent file",
			path: root + "/-home-me-app/abc/subagents/agent-acompact-53e7c1.jsonl",
			want: model.FileInfo{ProjectID: "-home-me-app", SessionID: "abc", Kind: model.PathSubagentFile, AgentSlug: "acompact"},
		},
		{
			name: "outside root uses projects marker",
			path: "/elsewhere/projects/p9/s9.jsonl",
			want: model.FileInfo{ProjectID: "p9", SessionID: "s9", Kind: model.MainFile},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPath(root, filepath.FromSlash(tt.path))
			tt.want.Path = filepath.FromSlash(tt.path)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	legacy := model.FileInfo{Path: "/p/proj/agent-7.jsonl", ProjectID: "proj", Kind: model.LegacySubagentFile, AgentSlug: "7"}
	mainFile := model.FileInfo{Path: "/p/proj/s2.jsonl", ProjectID: "proj", SessionID: "s2", Kind: model.MainFile}

	t.Run("legacy file takes session from record", func(t *testing.T) {
		rec, _ := ParseLine([]byte(`{"type":"assistant","sessionId":"s1"}`))
		ev, ok := Normalize(legacy, rec, 1)
		require.True(t, ok)
		assert.Equal(t, "s1", ev.SessionID)
		assert.True(t, ev.IsSubagent())
	})

	t.Run("legacy file without sessionId falls back to stem", func(t *testing.T) {
		rec, _ := ParseLine([]byte(`{"type":"assistant"}`))
		ev, ok := Normalize(legacy, rec, 1)
		require.True(t, ok)
		assert.Equal(t, "agent-7", ev.SessionID)
	})

	t.Run("main file ignores record sessionId", func(t *testing.T) {
		rec, _ := ParseLine([]byte(`{"type":"user","sessionId":"other"}`))
		ev, ok := Normalize(mainFile, rec, 3)
		require.True(t, ok)
		assert.Equal(t, "s2", ev.SessionID)
		assert.Equal(t, 3, ev.LineNumber)
		assert.False(t, ev.IsSubagent())
		assert.False(t, ev.HasUsage)
	})

	t.Run("sidechain flag in main file", func(t *testing.T) {
		rec, _ := ParseLine([]byte(`{"type":"assistant","isSidechain":true}`))
		ev, _ := Normalize(mainFile, rec, 1)
		assert.True(t, ev.IsSubagent())
		assert.True(t, ev.SidechainTurn())
		assert.False(t, ev.IsSubagentFile())
	})

	t.Run("missing token fields are zero", func(t *testing.T) {
		rec, _ := ParseLine([]byte(`{"type":"assistant","message":{"usage":{"output_tokens":9}}}`))
		ev, _ := Normalize(mainFile, rec, 1)
		assert.True(t, ev.HasUsage)
		assert.Equal(t, model.TokenUsage{OutputTokens: 9}, ev.Usage)
	})

	t.Run("malformed timestamp is nil", func(t *testing.T) {
		rec, _ := ParseLine([]byte(`{"type":"user","timestamp":"yesterday"}`))
		ev, _ := Normalize(mainFile, rec, 1)
		assert.Nil(t, ev.Timestamp)
		assert.Equal(t, "yesterday", ev.RawTimestamp)
	})

	t.Run("rejected records", func(t *testing.T) {
		for _, line := range []string{`{"uuid":"x"}`, `{"type":""}`, `{"type":"file-history-snapshot"}`} {
			rec, _ := ParseLine([]byte(line))
			_, ok := Normalize(mainFile, rec, 1)
			assert.False(t, ok, line)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2025-01-15T10:30:00.123Z",
		"2025-01-15T10:30:00Z",
		"2025-01-15T21:30:00+11:00",
		"2025-01-15T10:30:00",
	} {
		ts := ParseTimestamp(s)
		require.NotNil(t, ts, s)
		assert.Equal(t, 10, ts.Hour(), s)
	}
	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("2025-13-45"))
}

func TestAssignSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proj", "s.jsonl")
	writeJSONL(t, path,
		`{"type":"a","uuid":"late","timestamp":"2025-01-01T10:00:02Z"}`,
		`{"type":"a","uuid":"none"}`,
		`{"type":"a","uuid":"early","timestamp":"2025-01-01T10:00:00Z"}`,
		`{"type":"a","uuid":"tie","timestamp":"2025-01-01T10:00:02Z"}`,
	)
	events, stats, err := ParseFile(ClassifyPath(dir, path))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Lines)

	seq := map[string]int{}
	for _, ev := range events {
		seq[ev.UUID] = ev.Sequence
	}
	assert.Equal(t, map[string]int{"early": 1, "late": 2, "tie": 3, "none": 0}, seq)
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeJSONL(t, filepath.Join(root, "p1", "s1.jsonl"),
		`{"type":"user","timestamp":"2025-01-01T10:00:00Z"}`,
		`garbage`,
		``,
		`{"type":"assistant","timestamp":"2025-01-01T10:00:01Z","message":{"usage":{"input_tokens":1}}}`,
	)
	writeJSONL(t, filepath.Join(root, "p1", "agent-7.jsonl"),
		`{"type":"assistant","sessionId":"s1","message":{"usage":{"input_tokens":2}}}`,
	)
	writeJSONL(t, filepath.Join(root, "p2", "s2.jsonl"),
		`{"type":"user"}`,
	)
	require.NoError(t, os.WriteFile(filepath.Join(root, "p2", "notes.txt"), []byte("x"), 0o644))

	s := NewScanner(root, 4, nil)
	res, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Events, 4)
	assert.Equal(t, 3, res.Stats.Files)
	assert.Equal(t, 1, res.Stats.SkippedLines)
	assert.Len(t, res.ModTimes, 3)

	// Deterministic file order: agent-7, s1, s2.
	assert.Equal(t, "s1", res.Events[0].SessionID)
	assert.Equal(t, model.LegacySubagentFile, res.Events[0].Kind)
	assert.Equal(t, "p2", res.Events[3].ProjectID)

	onlyP2, err := s.Scan(context.Background(), func(fi model.FileInfo) bool { return fi.ProjectID == "p2" })
	require.NoError(t, err)
	assert.Len(t, onlyP2.Events, 1)
}

func TestScanRecordsKeepsSnapshots(t *testing.T) {
	root := t.TempDir()
	writeJSONL(t, filepath.Join(root, "p1", "s1.jsonl"),
		`{"type":"file-history-snapshot","messageId":"m"}`,
		`{"type":"user"}`,
	)
	files, stats, err := NewScanner(root, 1, nil).ScanRecords(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Len(t, files[0].Records, 2)
	assert.Equal(t, 2, stats.Lines)
	assert.False(t, files[0].Entry.ModTime.IsZero())
}

func TestScanMissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "nope"), 1, nil).Scan(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProjectsDirNotFound)
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeJSONL(t, filepath.Join(root, "p1", "s1.jsonl"), `{"type":"user"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(root, 2, nil).Scan(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanSkipsOversizedLine(t *testing.T) {
	root := t.TempDir()
	huge := `{"type":"user","pad":"` + strings.Repeat("x", maxLineSize+1024) + `"}`
	writeJSONL(t, filepath.Join(root, "p1", "s1.jsonl"),
		`{"type":"assistant","uuid":"a1","message":{"usage":{"input_tokens":1}}}`,
		huge,
		`{"type":"assistant","uuid":"a2","message":{"usage":{"input_tokens":2}}}`,
	)

	res, err := NewScanner(root, 1, nil).Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "a1", res.Events[0].UUID)
	assert.Equal(t, "a2", res.Events[1].UUID)
	assert.Equal(t, 3, res.Events[1].LineNumber)
	assert.Equal(t, ScanStats{Files: 1, Lines: 3, SkippedLines: 1}, res.Stats)
}

func TestReadFileWithoutTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"type\":\"a\"}\r\n\n{\"type\":\"b\"}"), 0o644))

	var lines []int
	stats, err := ReadFile(path, func(n int, _ RawRecord) { lines = append(lines, n) })
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, lines)
	assert.Equal(t, FileStats{Lines: 2}, stats)
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"-home-me-app", "abc", "agent-7", "..hidden"} {
		assert.True(t, ValidID(id), id)
	}
	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "/abs"} {
		assert.False(t, ValidID(id), id)
	}
}
