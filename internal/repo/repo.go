// Package repo defines the inbound repository-provider boundary.
//
// Scout consumes file sets and change deltas from an external collaborator
// (typically a version-control integration). The formats here are the
// engine-side view of that contract.
package repo

import (
	"context"
	"path/filepath"
	"strings"
)

// File is one enumerated repository file.
type File struct {
	// Path is relative to the repository root, slash-separated.
	Path string
	// Content is the full file content.
	Content []byte
	// Language is a lowercase language tag ("go", "python", ...),
	// empty when unknown.
	Language string
}

// Delta describes a change set between two repository states.
type Delta struct {
	// AddedOrModified carries full content for new and changed files.
	AddedOrModified []File
	// Removed lists paths that no longer exist.
	Removed []string
}

// Provider enumerates a repository's files.
type Provider interface {
	// Files returns the full file set for the current repository state.
	Files(ctx context.Context) ([]File, error)
}

// Edge is a directed cross-file reference supplied by an external
// reference extractor.
type Edge struct {
	From string
	To   string
	Kind string // "import", "call", "inheritance"
}

// EdgeSource supplies reference edges per file. Extraction itself is an
// external concern; the engine only stores and queries the edges.
type EdgeSource interface {
	Edges(ctx context.Context, file File) ([]Edge, error)
}

// NoEdges is an EdgeSource that yields nothing.
type NoEdges struct{}

// Edges implements EdgeSource.
func (NoEdges) Edges(context.Context, File) ([]Edge, error) { return nil, nil }

// extToLanguage maps file extensions to language tags.
var extToLanguage = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".mjs":  "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".md":   "markdown",
	".txt":  "text",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

// DetectLanguage returns the language tag for a path, or "" when unknown.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return extToLanguage[ext]
}
