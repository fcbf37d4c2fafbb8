package parser

import (
	"path/filepath"
	"strings"

	"github.com/zhaobenny/ccsessions/internal/model"
)

const (
	projectsMarker    = "projects"
	subagentsDir      = "subagents"
	legacyAgentPrefix = "agent-"
)

// ClassifyPath derives project, session and file kind from a transcript path.
// The project is the first directory below root; when path is not under root
// the segment after a "projects" directory is used instead.
func ClassifyPath(root, path string) model.FileInfo {
	info := model.FileInfo{Path: path}

	parts := relativeParts(root, path)
	if len(parts) == 0 {
		return info
	}
	if len(parts) > 1 {
		info.ProjectID = parts[0]
	}

	stem := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(path))
	if strings.HasPrefix(stem, legacyAgentPrefix) {
		info.AgentSlug = AgentSlug(stem)
	}

	// <project>/<session>/subagents/<file>.jsonl
	for i := len(parts) - 2; i >= 2; i-- {
		if parts[i] == subagentsDir {
			info.SessionID = parts[i-1]
			info.Kind = model.PathSubagentFile
			return info
		}
	}

	if strings.HasPrefix(stem, legacyAgentPrefix) {
		info.Kind = model.LegacySubagentFile
		return info
	}

	info.SessionID = stem
	info.Kind = model.MainFile
	return info
}

// AgentSlug extracts "acompact" from "agent-acompact-53e7c1".
func AgentSlug(stem string) string {
	rest := strings.TrimPrefix(stem, legacyAgentPrefix)
	if i := strings.LastIndex(rest, "-"); i > 0 {
		return rest[:i]
	}
	return rest
}

// FileStem returns the base name of path without its extension.
func FileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func relativeParts(root, path string) []string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			return strings.Split(filepath.ToSlash(rel), "/")
		}
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == projectsMarker {
			return parts[i+1:]
		}
	}
	return nil
}

// ValidID reports whether id can name a single directory or file directly
// below the projects directory.
func ValidID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`) && filepath.IsLocal(id)
}
