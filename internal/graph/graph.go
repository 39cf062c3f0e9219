// Package graph stores the cross-file reference graph used for ranking
// boosts. Nodes are file paths, edges are directed references (imports,
// calls, inheritance). Cycles and self-references are legal; the graph
// only answers neighborhood queries, it never walks transitively.
package graph

import (
	stderrors "errors"
	"log/slog"
	"sort"
	"sync"

	dgraph "github.com/dominikbraun/graph"

	"github.com/scoutindex/scout/internal/repo"
)

// FileGraph is a thread-safe directed graph over file paths.
type FileGraph struct {
	mu sync.RWMutex
	g  dgraph.Graph[string, string]
}

// NewFileGraph returns an empty graph.
func NewFileGraph() *FileGraph {
	return &FileGraph{
		g: dgraph.New(dgraph.StringHash, dgraph.Directed()),
	}
}

// AddFile ensures a node exists for path.
func (fg *FileGraph) AddFile(path string) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.addVertexLocked(path)
}

// addVertexLocked adds a node, tolerating duplicates. With StringHash
// vertices, duplication is the only failure AddVertex can report.
func (fg *FileGraph) addVertexLocked(path string) {
	_ = fg.g.AddVertex(path)
}

// AddEdge records a directed reference. Endpoints are created as needed;
// duplicate edges and self-references are accepted silently.
func (fg *FileGraph) AddEdge(e repo.Edge) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	fg.addVertexLocked(e.From)
	fg.addVertexLocked(e.To)

	// Duplicate edges keep the first recording. Self-references are
	// tolerated but carry no boost signal; Neighbors filters them.
	err := fg.g.AddEdge(e.From, e.To, dgraph.EdgeData(e.Kind))
	if err != nil && !stderrors.Is(err, dgraph.ErrEdgeAlreadyExists) &&
		!stderrors.Is(err, dgraph.ErrEdgeCreatesCycle) {
		slog.Debug("edge rejected",
			slog.String("from", e.From),
			slog.String("to", e.To),
			slog.String("error", err.Error()))
	}
}

// Neighbors returns files directly connected to path in either direction,
// sorted for determinism. A file is never its own neighbor.
func (fg *FileGraph) Neighbors(path string) []string {
	fg.mu.RLock()
	defer fg.mu.RUnlock()

	seen := make(map[string]struct{})

	if adj, err := fg.g.AdjacencyMap(); err == nil {
		for to := range adj[path] {
			seen[to] = struct{}{}
		}
	}
	if pred, err := fg.g.PredecessorMap(); err == nil {
		for from := range pred[path] {
			seen[from] = struct{}{}
		}
	}
	delete(seen, path)

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Connected reports whether a and b share an edge in either direction.
func (fg *FileGraph) Connected(a, b string) bool {
	fg.mu.RLock()
	defer fg.mu.RUnlock()

	adj, err := fg.g.AdjacencyMap()
	if err != nil {
		return false
	}
	if _, ok := adj[a][b]; ok {
		return true
	}
	_, ok := adj[b][a]
	return ok
}

// RemoveFile drops a file and every edge touching it. Removing an
// unknown path is a no-op.
func (fg *FileGraph) RemoveFile(path string) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	adj, err := fg.g.AdjacencyMap()
	if err != nil {
		return
	}
	if _, exists := adj[path]; !exists {
		return
	}

	for to := range adj[path] {
		_ = fg.g.RemoveEdge(path, to)
	}
	if pred, err := fg.g.PredecessorMap(); err == nil {
		for from := range pred[path] {
			_ = fg.g.RemoveEdge(from, path)
		}
	}
	_ = fg.g.RemoveVertex(path)
}

// HasFile reports whether path has a node.
func (fg *FileGraph) HasFile(path string) bool {
	fg.mu.RLock()
	defer fg.mu.RUnlock()
	_, err := fg.g.Vertex(path)
	return err == nil
}

// FileCount returns the number of file nodes.
func (fg *FileGraph) FileCount() int {
	fg.mu.RLock()
	defer fg.mu.RUnlock()
	n, err := fg.g.Order()
	if err != nil {
		return 0
	}
	return n
}
