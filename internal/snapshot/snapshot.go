// Package snapshot owns the index lifecycle: building immutable index
// snapshots from repository file sets, applying change deltas, and
// serving queries against the current snapshot while a new one builds.
package snapshot

import (
	"context"
	"sort"

	"github.com/scoutindex/scout/internal/chunk"
	"github.com/scoutindex/scout/internal/graph"
	"github.com/scoutindex/scout/internal/lexical"
	"github.com/scoutindex/scout/internal/repo"
	"github.com/scoutindex/scout/internal/search"
	"github.com/scoutindex/scout/internal/store"
)

// Snapshot is one immutable index generation. All fields are written
// during construction and only read afterwards, so queries need no
// locking.
type Snapshot struct {
	id uint64

	chunks  map[string]chunk.Chunk // chunk ID -> chunk
	byFile  map[string][]string    // file path -> chunk IDs
	vectors map[string][]float32   // chunk ID -> embedding
	edges   map[string][]repo.Edge // file path -> outgoing edges

	lex      *lexical.Index
	vec      *store.VectorStore
	refGraph *graph.FileGraph
	refs     []search.SymbolRef

	embedQuery func(ctx context.Context, query string) ([]float32, error)
}

// ID returns the snapshot's generation number.
func (s *Snapshot) ID() uint64 { return s.id }

// ChunkCount returns the number of indexed chunks.
func (s *Snapshot) ChunkCount() int { return len(s.chunks) }

// FileCount returns the number of indexed files.
func (s *Snapshot) FileCount() int { return len(s.byFile) }

// LexicalSearch implements search.Source.
func (s *Snapshot) LexicalSearch(query string, limit int) []lexical.Hit {
	return s.lex.Search(query, limit)
}

// SymbolRefs implements search.Source.
func (s *Snapshot) SymbolRefs() []search.SymbolRef {
	return s.refs
}

// VectorSearch implements search.Source.
func (s *Snapshot) VectorSearch(ctx context.Context, query string, k int) ([]store.VectorHit, error) {
	qvec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.vec.Search(qvec, k)
}

// ChunkByID implements search.Source.
func (s *Snapshot) ChunkByID(id string) (chunk.Chunk, bool) {
	c, ok := s.chunks[id]
	return c, ok
}

// Neighbors implements search.Source.
func (s *Snapshot) Neighbors(path string) []string {
	return s.refGraph.Neighbors(path)
}

// contentHashes returns the set of chunk content hashes in the snapshot.
func (s *Snapshot) contentHashes() map[string]struct{} {
	hashes := make(map[string]struct{}, len(s.chunks))
	for _, c := range s.chunks {
		hashes[c.ContentHash] = struct{}{}
	}
	return hashes
}

// finalize builds the derived query structures from the raw chunk,
// vector, and edge maps. Iteration is over sorted paths so index
// construction is deterministic.
func (s *Snapshot) finalize(modelTag string, dims int, maxPostings int, stopWords []string) {
	s.lex = lexical.NewIndex(maxPostings, stopWords)
	s.vec = store.NewVectorStore(dims, modelTag)
	s.refGraph = graph.NewFileGraph()
	s.refs = s.refs[:0]

	paths := make([]string, 0, len(s.byFile))
	for p := range s.byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		s.refGraph.AddFile(path)

		for _, id := range s.byFile[path] {
			c := s.chunks[id]
			s.lex.Add(c)
			if vec, ok := s.vectors[id]; ok {
				// Tags always match here; vectors were produced by
				// the same provider that sized the store.
				_ = s.vec.Add(id, modelTag, vec)
			}
			s.refs = append(s.refs, search.SymbolRef{
				ChunkID:  id,
				Symbol:   c.Symbol,
				FilePath: c.FilePath,
			})
		}

		for _, e := range s.edges[path] {
			s.refGraph.AddEdge(e)
		}
	}
}
