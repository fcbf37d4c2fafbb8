package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/ccsessions/internal/model"
)

func at(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func uuids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.UUID)
	}
	return out
}

// root -> a -> a1
//      -> b
// orphan (parent not in session)
func sampleEvents() []model.Event {
	return []model.Event{
		{UUID: "a1", ParentUUID: "a", Timestamp: at("2025-01-01T10:03:00Z")},
		{UUID: "root", Timestamp: at("2025-01-01T10:00:00Z")},
		{UUID: "b", ParentUUID: "root", Timestamp: at("2025-01-01T10:02:00Z"), Kind: model.PathSubagentFile},
		{UUID: "a", ParentUUID: "root", Timestamp: at("2025-01-01T10:01:00Z")},
		{UUID: "orphan", ParentUUID: "missing"},
	}
}

func TestBuild(t *testing.T) {
	tree := Build(sampleEvents())

	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, []string{"root", "a", "b", "a1", "orphan"}, uuids(tree.Nodes()))
	assert.Equal(t, []string{"root", "orphan"}, uuids(tree.Roots()))

	parent, ok := tree.Parent("a1")
	require.True(t, ok)
	assert.Equal(t, "a", parent.UUID)

	_, ok = tree.Parent("root")
	assert.False(t, ok)
	_, ok = tree.Parent("orphan")
	assert.False(t, ok)

	b, ok := tree.Lookup("b")
	require.True(t, ok)
	assert.True(t, b.SubagentFile)
	assert.Equal(t, []string{"b"}, uuids(tree.Sidechains()))
}

func TestDescendants(t *testing.T) {
	tree := Build(sampleEvents())

	tests := []struct {
		name string
		uuid string
		want []string
	}{
		{"whole tree", "root", []string{"root", "a", "b", "a1"}},
		{"subtree excludes ancestors", "a", []string{"a", "a1"}},
		{"leaf", "a1", []string{"a1"}},
		{"unknown", "nope", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uuids(tree.Descendants(tt.uuid)))
		})
	}
}

func TestBuildSelfParentAndDuplicates(t *testing.T) {
	tree := Build([]model.Event{
		{UUID: "x", ParentUUID: "x", Timestamp: at("2025-01-01T10:00:00Z")},
		{UUID: "x", Timestamp: at("2025-01-01T11:00:00Z"), Type: "dup"},
	})
	n, ok := tree.Lookup("x")
	require.True(t, ok)
	assert.Empty(t, n.Type)
	assert.Nil(t, n.Parent)
	assert.Equal(t, []string{"x"}, uuids(tree.Descendants("x")))
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var data []byte
	for _, l := range lines {
		data = append(data, l...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-Users-me-proj")

	writeLines(t, filepath.Join(project, "s1.jsonl"),
		`{"type":"user","uuid":"u1","timestamp":"2025-01-01T10:00:00Z","sessionId":"s1"}`,
		`{"type":"assistant","uuid":"u2","parentUuid":"u1","timestamp":"2025-01-01T10:00:05Z","sessionId":"s1"}`,
	)
	writeLines(t, filepath.Join(project, "s1", "subagents", "agent-explore-1a2b.jsonl"),
		`{"type":"assistant","uuid":"u3","parentUuid":"u2","timestamp":"2025-01-01T10:00:10Z","sessionId":"s1","isSidechain":true}`,
	)
	writeLines(t, filepath.Join(project, "agent-7.jsonl"),
		`{"type":"assistant","uuid":"u4","parentUuid":"u2","timestamp":"2025-01-01T10:00:20Z","sessionId":"s1"}`,
		`{"type":"assistant","uuid":"x1","timestamp":"2025-01-01T10:00:30Z","sessionId":"other"}`,
	)
	writeLines(t, filepath.Join(project, "s2.jsonl"),
		`{"type":"user","uuid":"y1","timestamp":"2025-01-01T10:00:00Z","sessionId":"s2"}`,
	)

	events, err := Load(context.Background(), root, "-Users-me-proj", "s1", nil)
	require.NoError(t, err)

	tree := Build(events)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, uuids(tree.Nodes()))
	assert.Equal(t, []string{"u2", "u3", "u4"}, uuids(tree.Descendants("u2")))

	u4, ok := tree.Lookup("u4")
	require.True(t, ok)
	assert.Equal(t, "s1", u4.SessionID)
	assert.Equal(t, "7", u4.AgentSlug)
	assert.True(t, u4.SubagentFile)

	u3, _ := tree.Lookup("u3")
	assert.Equal(t, model.PathSubagentFile, u3.Kind)
}

func TestLoadMissing(t *testing.T) {
	root := t.TempDir()
	_, err := Load(context.Background(), root, "proj", "nope", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = Load(context.Background(), root, "../etc", "passwd", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLoadStaysInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "projects")
	writeLines(t, filepath.Join(root, "proj", "s1.jsonl"),
		`{"type":"user","uuid":"u1","sessionId":"s1"}`,
	)
	writeLines(t, filepath.Join(base, "secret.jsonl"),
		`{"type":"user","uuid":"leak","sessionId":"secret"}`,
	)
	writeLines(t, filepath.Join(base, "agent-1.jsonl"),
		`{"type":"user","uuid":"leak2","sessionId":"secret"}`,
	)

	for _, tc := range []struct{ project, session string }{
		{"..", "secret"},
		{".", "proj"},
		{"proj", ".."},
		{"", "s1"},
	} {
		_, err := Load(context.Background(), root, tc.project, tc.session, nil)
		assert.ErrorIs(t, err, ErrSessionNotFound, "%s/%s", tc.project, tc.session)
	}
}
