// Package store holds snapshot-scoped storage: the in-memory HNSW vector
// index and the bbolt-backed persistent embedding cache.
package store

import (
	"math"
	"sync"

	"github.com/coder/hnsw"

	scouterr "github.com/scoutindex/scout/internal/errors"
)

// VectorHit is one nearest-neighbor result with a similarity score in [0, 1].
type VectorHit struct {
	ChunkID string
	Score   float64
}

// VectorStore is an HNSW index over chunk embeddings. All vectors must
// come from the same provider model tag; mixing tags is rejected because
// vectors from different models are not comparable.
type VectorStore struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	idMap    map[string]uint64 // chunk ID -> graph key
	keyMap   map[uint64]string // graph key -> chunk ID
	nextKey  uint64
	orphans  int // lazily deleted nodes still in the graph
	dims     int
	modelTag string
}

// NewVectorStore creates a store for vectors of the given width produced
// by the given model tag.
func NewVectorStore(dims int, modelTag string) *VectorStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &VectorStore{
		graph:    graph,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		dims:     dims,
		modelTag: modelTag,
	}
}

// ModelTag returns the tag this store accepts vectors from.
func (s *VectorStore) ModelTag() string { return s.modelTag }

// Add inserts or replaces one chunk's vector.
func (s *VectorStore) Add(chunkID, modelTag string, vec []float32) error {
	if modelTag != s.modelTag {
		return scouterr.New(scouterr.ErrCodeProviderMismatch,
			"vector model tag does not match store", nil).
			WithDetail("store_tag", s.modelTag).
			WithDetail("vector_tag", modelTag)
	}
	if len(vec) != s.dims {
		return scouterr.New(scouterr.ErrCodeProviderMismatch,
			"vector width does not match store", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replacing an ID uses lazy deletion: orphan the old graph node
	// rather than deleting it, which coder/hnsw handles badly for the
	// last node.
	if oldKey, exists := s.idMap[chunkID]; exists {
		delete(s.keyMap, oldKey)
		s.orphans++
	}

	key := s.nextKey
	s.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	s.graph.Add(hnsw.MakeNode(key, normalized))
	s.idMap[chunkID] = key
	s.keyMap[key] = chunkID

	return nil
}

// Remove drops chunk IDs from the store. Missing IDs are ignored.
func (s *VectorStore) Remove(chunkIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range chunkIDs {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			s.orphans++
		}
	}
}

// Search returns up to k nearest chunks, best first. Cosine distance d
// maps to score 1 - d, clamped to [0, 1]: identical direction scores 1,
// orthogonal and opposing vectors score 0 and are dropped.
func (s *VectorStore) Search(query []float32, k int) ([]VectorHit, error) {
	if len(query) != s.dims {
		return nil, scouterr.New(scouterr.ErrCodeProviderMismatch,
			"query vector width does not match store", nil)
	}
	if isZero(query) {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.idMap) == 0 || k <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Oversample to ride past lazily deleted nodes.
	fetch := k + s.orphans
	if max := len(s.idMap) + s.orphans; fetch > max {
		fetch = max
	}

	nodes := s.graph.Search(normalized, fetch)

	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		d := float64(s.graph.Distance(normalized, node.Value))
		score := 1 - d
		if score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		hits = append(hits, VectorHit{ChunkID: id, Score: score})
		if len(hits) == k {
			break
		}
	}

	return hits, nil
}

// Contains reports whether a chunk ID has a live vector.
func (s *VectorStore) Contains(chunkID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[chunkID]
	return ok
}

// Count returns the number of live vectors.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func normalizeInPlace(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}
