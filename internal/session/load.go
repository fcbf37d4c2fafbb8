package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/parser"
)

// ErrSessionNotFound is returned when no transcript belongs to the session.
var ErrSessionNotFound = errors.New("session not found")

// Files lists the transcripts of a session: the main file, path-based
// subagent files, and every legacy agent-*.jsonl file in the project
// directory. Legacy files still need their records checked for the session.
func Files(root, project, session string) []string {
	projectDir := filepath.Join(root, project)

	var files []string
	mainFile := filepath.Join(projectDir, session+".jsonl")
	if fi, err := os.Stat(mainFile); err == nil && !fi.IsDir() {
		files = append(files, mainFile)
	}

	subagents, _ := filepath.Glob(filepath.Join(projectDir, session, "subagents", "*.jsonl"))
	sort.Strings(subagents)
	files = append(files, subagents...)

	legacy, _ := filepath.Glob(filepath.Join(projectDir, "agent-*.jsonl"))
	sort.Strings(legacy)
	return append(files, legacy...)
}

// Load reads every event of one session. Ids that would leave the projects
// directory are rejected. A file that fails part way keeps its earlier events.
func Load(ctx context.Context, root, project, session string, logger *zap.Logger) ([]model.Event, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !parser.ValidID(project) || !parser.ValidID(session) {
		return nil, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, project, session)
	}

	var events []model.Event
	for _, path := range Files(root, project, session) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := parser.ClassifyPath(root, path)
		parsed, _, err := parser.ParseFile(info)
		if err != nil {
			logger.Warn("stopped reading file", zap.String("path", path), zap.Error(err))
		}
		for _, ev := range parsed {
			if ev.SessionID == session {
				events = append(events, ev)
			}
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, project, session)
	}
	return events, nil
}
