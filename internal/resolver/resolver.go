// Package resolver maps encoded project ids back to filesystem paths and
// display names.
package resolver

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/zhaobenny/ccsessions/internal/parser"
)

// Resolution sources.
const (
	SourceSessionsIndex = "sessions-index"
	SourceHeuristic     = "heuristic"
	SourceUnresolved    = "unresolved"
)

const (
	sessionsIndexFile = "sessions-index.json"
	cacheTTL          = 10 * time.Minute
)

// skipPrefixes are leading path segments that never name a project.
var skipPrefixes = map[string]bool{
	"Users": true,
	"home":  true,
	"var":   true,
	"tmp":   true,
	"opt":   true,
}

// ProjectInfo is a resolved project.
type ProjectInfo struct {
	ProjectID string `json:"project_id"`
	// ProjectPath is empty when the project could not be resolved.
	ProjectPath string `json:"project_path,omitempty"`
	ProjectName string `json:"project_name"`
	Source      string `json:"resolution_source"`
}

// Resolved reports whether a filesystem path was found.
func (p ProjectInfo) Resolved() bool {
	return p.ProjectPath != ""
}

// Resolver resolves project ids. Results are cached; only path facts are
// cached, never usage data.
type Resolver struct {
	projectsPath string
	// fsRoot is where decoded absolute paths are checked. "/" outside tests.
	fsRoot string
	cache  *ristretto.Cache[string, ProjectInfo]
	logger *zap.Logger
}

// New creates a resolver over a projects directory.
func New(projectsPath string, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, ProjectInfo]{
		NumCounters:        10_000,
		MaxCost:            1_000,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Resolver{
		projectsPath: projectsPath,
		fsRoot:       "/",
		cache:        c,
		logger:       logger,
	}, nil
}

// Close releases the cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

// Clear drops every cached resolution.
func (r *Resolver) Clear() {
	r.cache.Clear()
}

// Resolve maps a project id to its path: sessions-index.json first, then a
// greedy decode checked against the filesystem, else just a display name.
func (r *Resolver) Resolve(projectID string) ProjectInfo {
	if info, ok := r.cache.Get(projectID); ok {
		return info
	}
	info := r.resolve(projectID)
	r.cache.SetWithTTL(projectID, info, 1, cacheTTL)
	r.cache.Wait()
	return info
}

// All resolves every project directory, skipping hidden ones.
func (r *Resolver) All() ([]ProjectInfo, error) {
	entries, err := os.ReadDir(r.projectsPath)
	if err != nil {
		return nil, err
	}
	var out []ProjectInfo
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, r.Resolve(e.Name()))
	}
	return out, nil
}

func (r *Resolver) resolve(projectID string) ProjectInfo {
	if !parser.ValidID(projectID) {
		return ProjectInfo{ProjectID: projectID, ProjectName: NameFromID(projectID), Source: SourceUnresolved}
	}
	if info, ok := r.fromSessionsIndex(projectID); ok {
		return info
	}
	if p, ok := r.decodeGreedy(projectID); ok {
		return ProjectInfo{
			ProjectID:   projectID,
			ProjectPath: p,
			ProjectName: path.Base(p),
			Source:      SourceHeuristic,
		}
	}
	return ProjectInfo{
		ProjectID:   projectID,
		ProjectName: NameFromID(projectID),
		Source:      SourceUnresolved,
	}
}

type sessionsIndex struct {
	Entries []struct {
		ProjectPath string `json:"projectPath"`
	} `json:"entries"`
}

func (r *Resolver) fromSessionsIndex(projectID string) (ProjectInfo, bool) {
	data, err := os.ReadFile(filepath.Join(r.projectsPath, projectID, sessionsIndexFile))
	if err != nil {
		return ProjectInfo{}, false
	}

	var idx sessionsIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		r.logger.Warn("invalid sessions index", zap.String("project", projectID), zap.Error(err))
		return ProjectInfo{}, false
	}
	if len(idx.Entries) == 0 || idx.Entries[0].ProjectPath == "" {
		return ProjectInfo{}, false
	}

	p := idx.Entries[0].ProjectPath
	return ProjectInfo{
		ProjectID:   projectID,
		ProjectPath: p,
		ProjectName: filepath.Base(p),
		Source:      SourceSessionsIndex,
	}, true
}

// decodeGreedy turns "-a-b-c" back into a path, taking the longest
// dash-joined segment that exists at each step.
func (r *Resolver) decodeGreedy(projectID string) (string, bool) {
	if !strings.HasPrefix(projectID, "-") || len(projectID) == 1 {
		return "", false
	}
	parts := strings.Split(projectID[1:], "-")

	current := "/"
	for i := 0; i < len(parts); {
		found := false
		for j := len(parts); j > i; j-- {
			candidate := path.Join(current, strings.Join(parts[i:j], "-"))
			if _, err := os.Stat(filepath.Join(r.fsRoot, filepath.FromSlash(candidate))); err == nil {
				current, i, found = candidate, j, true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	return current, current != "/"
}

// NameFromID guesses a display name from an encoded id by dropping common
// leading path segments: "-Users-me-work" gives "me-work".
func NameFromID(projectID string) string {
	parts := strings.Split(strings.TrimLeft(projectID, "-"), "-")
	for i, part := range parts {
		if !skipPrefixes[part] {
			if i > 0 {
				return strings.Join(parts[i:], "-")
			}
			return parts[len(parts)-1]
		}
	}
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1]
	}
	return projectID
}

// EncodePath encodes a filesystem path the way project directories are named.
func EncodePath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(p)), "/", "-")
}
